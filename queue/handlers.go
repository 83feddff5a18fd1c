package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/monitoring"
	"github.com/shehan-anujaya/SmartQ/mq"
	"github.com/shehan-anujaya/SmartQ/rdx"
	"github.com/shehan-anujaya/SmartQ/utils"
)

const estimateCacheTTL = 30 * time.Second

var eng = Default()

// Default returns the engine the HTTP handlers and background workers
// share, backed by the live collections.
func Default() *Engine {
	return NewEngine(MongoStores())
}

// JoinQueue admits the authenticated customer into the service's queue
// and returns the created entry with its wait estimate.
func JoinQueue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ServiceID string `json:"serviceid"`
		Priority  int    `json:"priority"`
		Notes     string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.ServiceID == "" {
		http.Error(w, "Missing serviceid", http.StatusBadRequest)
		return
	}

	entry, est, err := eng.Admit(context.TODO(), requesterID, req.ServiceID, req.Priority, req.Notes)
	monitoring.TrackAdmission(req.ServiceID, outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}

	go mq.Emit("entry-admitted", models.QueueEvent{
		EntryID:   entry.EntryID,
		ServiceID: entry.ServiceID,
		Token:     entry.Token,
		CounterID: entry.CounterID,
		Status:    entry.Status,
	})

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"success":  true,
		"entry":    entry,
		"estimate": est,
	})
}

// CancelEntry cancels a queue entry. Customers may cancel their own
// entries; staff and admins may cancel any.
func CancelEntry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	entryID := ps.ByName("entryid")

	entry, err := eng.entries.Get(context.TODO(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	if entry.CustomerID != requesterID && !isStaff(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	updated, err := eng.Transition(context.TODO(), entryID, models.StatusCancelled, "")
	monitoring.TrackTransition(models.StatusCancelled, outcomeLabel(err))
	if err != nil {
		writeError(w, err)
		return
	}

	go mq.Emit("entry-cancelled", models.QueueEvent{
		EntryID:   updated.EntryID,
		ServiceID: updated.ServiceID,
		Token:     updated.Token,
		CounterID: updated.CounterID,
		Status:    updated.Status,
	})

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "entry": updated})
}

// GetQueueEntry returns an entry with its live queue position. Position
// counts waiting entries served before this one: higher priority first,
// then lower token.
func GetQueueEntry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	entryID := ps.ByName("entryid")

	entry, err := eng.entries.Get(context.TODO(), entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	if entry.CustomerID != requesterID && !isStaff(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	position := 0
	if entry.Status == models.StatusWaiting {
		ahead, err := db.QueueEntriesCollection.CountDocuments(context.TODO(), bson.M{
			"serviceid": entry.ServiceID,
			"status":    models.StatusWaiting,
			"$or": []bson.M{
				{"priority": bson.M{"$gt": entry.Priority}},
				{"priority": entry.Priority, "token": bson.M{"$lt": entry.Token}},
			},
		})
		if err != nil {
			log.Printf("queue: position count for %s failed: %v", entryID, err)
		} else {
			position = int(ahead) + 1
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":  true,
		"entry":    entry,
		"position": position,
	})
}

// GetEstimate returns the wait estimate for a service. The queue size
// comes from the size query parameter when given, otherwise from the
// current waiting count. Fresh results are cached briefly; degraded
// ones are recomputed on every request.
func GetEstimate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	serviceID := ps.ByName("serviceid")

	size := -1
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid size", http.StatusBadRequest)
			return
		}
		size = n
	}
	if size < 0 {
		n, err := eng.entries.CountByService(context.TODO(), serviceID, models.StatusWaiting)
		if err != nil {
			log.Printf("queue: waiting count for %s failed: %v", serviceID, err)
			n = 0
		}
		size = int(n)
	}

	cacheKey := fmt.Sprintf("estimate:%s:%d", serviceID, size)
	if cached, err := rdx.RdxGet(cacheKey); err == nil && cached != "" {
		var est models.WaitEstimate
		if json.Unmarshal([]byte(cached), &est) == nil {
			utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "estimate": est, "cached": true})
			return
		}
	}

	start := time.Now()
	est := eng.Estimate(context.TODO(), serviceID, size)
	monitoring.TrackEstimate(time.Since(start), est.Degraded)

	if !est.Degraded {
		if b, err := json.Marshal(est); err == nil {
			if err := rdx.SetWithExpiry(cacheKey, string(b), estimateCacheTTL); err != nil {
				log.Printf("queue: caching estimate for %s failed: %v", serviceID, err)
			}
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "estimate": est})
}

func isStaff(r *http.Request) bool {
	roles := utils.GetRolesFromRequest(r)
	return utils.Contains(roles, "staff") || utils.Contains(roles, "admin")
}

// eventName maps an entry status to the event published for it.
func eventName(status string) string {
	switch status {
	case models.StatusCalled:
		return "entry-called"
	case models.StatusInService:
		return "entry-started"
	case models.StatusCompleted:
		return "entry-completed"
	case models.StatusCancelled:
		return "entry-cancelled"
	case models.StatusNoShow:
		return "entry-noshow"
	}
	return "entry-updated"
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, ErrCapacityExceeded):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrUnavailable):
		utils.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
