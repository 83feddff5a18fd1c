package queue

import (
	"context"
	"time"

	"github.com/shehan-anujaya/SmartQ/models"
)

// Storage seams for the admission, scoring, estimation and lifecycle
// logic. The Mongo implementations live in mongostore.go; tests swap in
// in-memory fakes.

type ServiceStore interface {
	Get(ctx context.Context, serviceID string) (*models.Service, error)
}

type SampleStore interface {
	// RecentCompleted returns up to limit completed samples for the
	// service, most recent first.
	RecentCompleted(ctx context.Context, serviceID string, limit int64) ([]models.ServiceSample, error)
}

type EntryStore interface {
	Insert(ctx context.Context, entry *models.QueueEntry) error
	Get(ctx context.Context, entryID string) (*models.QueueEntry, error)
	HasActive(ctx context.Context, customerID, serviceID string) (bool, error)
	CountByService(ctx context.Context, serviceID string, statuses ...string) (int64, error)
	CountByCounter(ctx context.Context, counterID string, statuses ...string) (int64, error)
	CountActiveByQueue(ctx context.Context, queueID string) (int64, error)
	// NextWaiting picks the waiting entry served next: highest priority
	// first, then lowest token.
	NextWaiting(ctx context.Context, serviceID string) (*models.QueueEntry, error)
	// Swap flips the entry's status only if it still equals fromStatus,
	// applying the rest of the patch in the same operation. ErrNotFound
	// means no entry matched, i.e. the status moved concurrently.
	Swap(ctx context.Context, entryID, fromStatus string, patch EntryPatch) (*models.QueueEntry, error)
}

type QueueStore interface {
	// Reserve finds or creates the day's queue for the service and, in
	// one conditional update, verifies capacity, increments occupancy
	// and draws the next token. Full queues yield ErrCapacityExceeded
	// with nothing changed.
	Reserve(ctx context.Context, serviceID, date string, capacity int) (*models.Queue, error)
	// Release undoes one occupancy reservation; it never drops below 0.
	Release(ctx context.Context, queueID string) error
	Open(ctx context.Context) ([]models.Queue, error)
	SetOccupancy(ctx context.Context, queueID string, occupancy int) error
}

type CounterStore interface {
	Get(ctx context.Context, counterID string) (*models.Counter, error)
	// ActiveSupporting lists non-offline counters that serve the
	// service, ordered by counter number.
	ActiveSupporting(ctx context.Context, serviceID string) ([]models.Counter, error)
	// Occupied lists counters holding a current-entry reference.
	Occupied(ctx context.Context) ([]models.Counter, error)
	Assign(ctx context.Context, counterID, entryID string) error
	// Release frees the counter only while it still points at entryID.
	Release(ctx context.Context, counterID, entryID string) error
	SetAvgServiceTime(ctx context.Context, counterID string, avg float64) error
}

// EntryPatch carries the fields a transition writes alongside the
// status flip. Nil pointers are left untouched.
type EntryPatch struct {
	Status      string
	CounterID   string
	CalledAt    *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	ActualWait  *int
	Active      *bool
}

// Stores bundles the seams an Engine needs.
type Stores struct {
	Services ServiceStore
	Samples  SampleStore
	Entries  EntryStore
	Queues   QueueStore
	Counters CounterStore
}
