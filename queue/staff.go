package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/monitoring"
	"github.com/shehan-anujaya/SmartQ/mq"
	"github.com/shehan-anujaya/SmartQ/utils"
)

// CallNext calls the next waiting entry for the service. The body may
// name a counter; without one the entry keeps its assignment hint.
func CallNext(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	serviceID := ps.ByName("serviceid")

	var req struct {
		CounterID string `json:"counterid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	entry, err := eng.CallNext(context.TODO(), serviceID, req.CounterID)
	monitoring.TrackTransition(models.StatusCalled, outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}

	go mq.Emit("entry-called", models.QueueEvent{
		EntryID:   entry.EntryID,
		ServiceID: entry.ServiceID,
		Token:     entry.Token,
		CounterID: entry.CounterID,
		Status:    entry.Status,
	})

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "entry": entry})
}

// TransitionEntry moves an entry to the requested status.
func TransitionEntry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	entryID := ps.ByName("entryid")

	var req struct {
		Status    string `json:"status"`
		CounterID string `json:"counterid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Status == "" {
		http.Error(w, "Missing status", http.StatusBadRequest)
		return
	}

	updated, err := eng.Transition(context.TODO(), entryID, req.Status, req.CounterID)
	monitoring.TrackTransition(req.Status, outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}

	go mq.Emit(eventName(updated.Status), models.QueueEvent{
		EntryID:   updated.EntryID,
		ServiceID: updated.ServiceID,
		Token:     updated.Token,
		CounterID: updated.CounterID,
		Status:    updated.Status,
	})

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "entry": updated})
}

// ListQueues returns the day's queues. A date query overrides the
// default of today.
func ListQueues(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = utils.Today()
	}

	filter := bson.M{"date": date}
	if serviceID := r.URL.Query().Get("service"); serviceID != "" {
		filter["serviceid"] = serviceID
	}

	cursor, err := db.QueuesCollection.Find(context.TODO(), filter,
		options.Find().SetSort(bson.D{{Key: "serviceid", Value: 1}}))
	if err != nil {
		http.Error(w, "Failed to fetch queues", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(context.TODO())

	var queues []models.Queue
	if err := cursor.All(context.TODO(), &queues); err != nil {
		http.Error(w, "Failed to decode queues", http.StatusInternalServerError)
		return
	}
	if queues == nil {
		queues = []models.Queue{}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"date":    date,
		"queues":  queues,
	})
}

// ListEntries returns a service's entries in serving order. A status
// query filters by status; the default is active entries only.
func ListEntries(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	serviceID := ps.ByName("serviceid")

	filter := bson.M{"serviceid": serviceID}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	} else {
		filter["active"] = true
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "token", Value: 1}}).
		SetLimit(200)

	cursor, err := db.QueueEntriesCollection.Find(context.TODO(), filter, opts)
	if err != nil {
		http.Error(w, "Failed to fetch entries", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(context.TODO())

	var entries []models.QueueEntry
	if err := cursor.All(context.TODO(), &entries); err != nil {
		http.Error(w, "Failed to decode entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"entries": entries,
		"count":   len(entries),
	})
}
