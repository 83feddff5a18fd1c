package models

import "time"

const (
	AppointmentScheduled = "scheduled"
	AppointmentCheckedIn = "checked-in"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no-show"
)

type Appointment struct {
	AppointmentID string    `json:"appointmentid" bson:"appointmentid"`
	CustomerID    string    `json:"customerid" bson:"customerid"`
	ServiceID     string    `json:"serviceid" bson:"serviceid"`
	Date          string    `json:"date" bson:"date"` // YYYY-MM-DD
	TimeSlot      string    `json:"timeSlot" bson:"timeSlot"`
	Status        string    `json:"status" bson:"status"`
	EntryID       string    `json:"entryid,omitempty" bson:"entryid,omitempty"` // set on check-in
	Notes         string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}
