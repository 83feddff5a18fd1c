package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/mq"
	"github.com/shehan-anujaya/SmartQ/queue"
	"github.com/shehan-anujaya/SmartQ/utils"
)

var eng = queue.Default()

// Appointment holders enter the queue ahead of walk-ins.
const checkInPriority = 5

// CheckIn converts a scheduled appointment into a live queue entry on
// its appointment day. The appointment is flipped to checked-in before
// admission so two concurrent check-ins cannot both enter the queue; a
// failed admission flips it back.
func CheckIn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	appointmentID := ps.ByName("appointmentid")

	var req struct {
		Priority int    `json:"priority"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	apt, code := loadAppointment(appointmentID)
	if code != 0 {
		http.Error(w, "Appointment not found", code)
		return
	}
	if apt.CustomerID != requesterID && !isStaff(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if apt.Date != utils.Today() {
		http.Error(w, "Appointment is not scheduled for today", http.StatusConflict)
		return
	}

	res, err := db.AppointmentsCollection.UpdateOne(context.TODO(),
		bson.M{"appointmentid": appointmentID, "status": models.AppointmentScheduled},
		bson.M{"$set": bson.M{"status": models.AppointmentCheckedIn, "updatedAt": time.Now()}},
	)
	if err != nil {
		http.Error(w, "Failed to check in", http.StatusInternalServerError)
		return
	}
	if res.MatchedCount == 0 {
		http.Error(w, "Appointment already checked in or closed", http.StatusConflict)
		return
	}

	priority := req.Priority
	if priority < checkInPriority {
		priority = checkInPriority
	}
	notes := req.Notes
	if notes == "" {
		notes = apt.Notes
	}

	entry, est, err := eng.Admit(context.TODO(), apt.CustomerID, apt.ServiceID, priority, notes)
	if err != nil {
		revertCheckIn(appointmentID)
		writeQueueError(w, err)
		return
	}

	if _, err := db.AppointmentsCollection.UpdateOne(context.TODO(),
		bson.M{"appointmentid": appointmentID},
		bson.M{"$set": bson.M{"entryid": entry.EntryID, "updatedAt": time.Now()}},
	); err != nil {
		log.Printf("appointments: linking entry %s to %s failed: %v", entry.EntryID, appointmentID, err)
	}

	go mq.Emit("entry-admitted", models.QueueEvent{
		EntryID:   entry.EntryID,
		ServiceID: entry.ServiceID,
		Token:     entry.Token,
		CounterID: entry.CounterID,
		Status:    entry.Status,
	})

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":  true,
		"entry":    entry,
		"estimate": est,
	})
}

func revertCheckIn(appointmentID string) {
	_, err := db.AppointmentsCollection.UpdateOne(context.TODO(),
		bson.M{"appointmentid": appointmentID, "status": models.AppointmentCheckedIn},
		bson.M{"$set": bson.M{"status": models.AppointmentScheduled, "updatedAt": time.Now()}},
	)
	if err != nil {
		log.Printf("appointments: check-in revert for %s failed: %v", appointmentID, err)
	}
}

func writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrConflict), errors.Is(err, queue.ErrCapacityExceeded):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, queue.ErrUnavailable):
		utils.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
