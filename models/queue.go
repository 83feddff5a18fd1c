package models

import "time"

// Queue entry statuses. waiting, called and in-service count as active;
// the rest are terminal.
const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusInService = "in-service"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

const (
	CounterAvailable = "available"
	CounterBusy      = "busy"
	CounterOffline   = "offline"
)

const (
	QueueOpen   = "open"
	QueueClosed = "closed"
)

type Service struct {
	ServiceID   string    `json:"serviceid" bson:"serviceid"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Duration    int       `json:"duration" bson:"duration"` // nominal minutes, >= 5
	Price       float64   `json:"price" bson:"price"`
	Active      bool      `json:"active" bson:"active"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

type Counter struct {
	CounterID      string    `json:"counterid" bson:"counterid"`
	Number         int       `json:"number" bson:"number"`
	Name           string    `json:"name" bson:"name"`
	Services       []string  `json:"services" bson:"services"`
	Status         string    `json:"status" bson:"status"`
	CurrentEntry   string    `json:"currentEntry,omitempty" bson:"currentEntry,omitempty"`
	AvgServiceTime float64   `json:"avgServiceTime" bson:"avgServiceTime"` // rolling minutes, starts at 0
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Queue is one day's queue for one service. Occupancy counts active
// entries; lastToken is the per-queue sequence cursor.
type Queue struct {
	QueueID   string    `json:"queueid" bson:"queueid"`
	ServiceID string    `json:"serviceid" bson:"serviceid"`
	Date      string    `json:"date" bson:"date"` // YYYY-MM-DD
	Status    string    `json:"status" bson:"status"`
	Capacity  int       `json:"capacity" bson:"capacity"` // 0 = unbounded
	Occupancy int       `json:"occupancy" bson:"occupancy"`
	LastToken int       `json:"lastToken" bson:"lastToken"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type QueueEntry struct {
	EntryID       string     `json:"entryid" bson:"entryid"`
	Token         int        `json:"token" bson:"token"`
	QueueID       string     `json:"queueid" bson:"queueid"`
	ServiceID     string     `json:"serviceid" bson:"serviceid"`
	CustomerID    string     `json:"customerid" bson:"customerid"`
	CounterID     string     `json:"counterid,omitempty" bson:"counterid,omitempty"`
	Status        string     `json:"status" bson:"status"`
	Priority      int        `json:"priority" bson:"priority"` // 0-10, higher served first
	EstimatedWait int        `json:"estimatedWait" bson:"estimatedWait"`
	ActualWait    int        `json:"actualWait,omitempty" bson:"actualWait,omitempty"`
	Notes         string     `json:"notes,omitempty" bson:"notes,omitempty"`
	Active        bool       `json:"active" bson:"active"`
	JoinedAt      time.Time  `json:"joinedAt" bson:"joinedAt"`
	CalledAt      *time.Time `json:"calledAt,omitempty" bson:"calledAt,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// ServiceSample is the slice of a completed entry the estimator reads.
type ServiceSample struct {
	StartedAt   time.Time `bson:"startedAt"`
	CompletedAt time.Time `bson:"completedAt"`
}

// WaitEstimate is computed fresh per request and never persisted.
// Degraded marks fallback estimates so callers can tell them from real
// ones; it is not part of the public payload.
type WaitEstimate struct {
	EstimatedWaitMinutes int     `json:"estimatedWaitMinutes"`
	QueuePosition        int     `json:"queuePosition"`
	AvgServiceMinutes    int     `json:"avgServiceMinutes"`
	Confidence           float64 `json:"confidence"`
	Degraded             bool    `json:"-"`
}

// QueueEvent is published on the queue-events channel for the display
// board and any other subscriber.
type QueueEvent struct {
	Type      string `json:"type"`
	EntryID   string `json:"entryid"`
	ServiceID string `json:"serviceid"`
	Token     int    `json:"token"`
	CounterID string `json:"counterid,omitempty"`
	Status    string `json:"status"`
}
