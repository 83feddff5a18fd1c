package counters

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/utils"
)

type counterPayload struct {
	Number   *int     `json:"number"`
	Name     string   `json:"name"`
	Services []string `json:"services"`
}

func validStatus(s string) bool {
	return s == models.CounterAvailable || s == models.CounterBusy || s == models.CounterOffline
}

// CreateCounter adds a staffed counter. Counter numbers are unique.
func CreateCounter(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req counterPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Number == nil || *req.Number <= 0 {
		http.Error(w, "Counter number must be positive", http.StatusBadRequest)
		return
	}
	if len(req.Services) == 0 {
		http.Error(w, "Counter must list at least one service", http.StatusBadRequest)
		return
	}

	now := time.Now()
	counter := models.Counter{
		CounterID: utils.GenerateID(),
		Number:    *req.Number,
		Name:      req.Name,
		Services:  req.Services,
		Status:    models.CounterAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := db.CountersCollection.InsertOne(context.TODO(), counter); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			http.Error(w, "Counter number already in use", http.StatusConflict)
			return
		}
		log.Printf("counters: insert failed: %v", err)
		http.Error(w, "Failed to create counter", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "counter": counter})
}

// UpdateCounter applies a partial update.
func UpdateCounter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	counterID := ps.ByName("counterid")

	var req counterPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	set := bson.M{"updatedAt": time.Now()}
	if req.Number != nil {
		if *req.Number <= 0 {
			http.Error(w, "Counter number must be positive", http.StatusBadRequest)
			return
		}
		set["number"] = *req.Number
	}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if len(req.Services) > 0 {
		set["services"] = req.Services
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Counter
	err := db.CountersCollection.FindOneAndUpdate(context.TODO(),
		bson.M{"counterid": counterID},
		bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Counter not found", http.StatusNotFound)
		return
	}
	if mongo.IsDuplicateKeyError(err) {
		http.Error(w, "Counter number already in use", http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("counters: update of %s failed: %v", counterID, err)
		http.Error(w, "Failed to update counter", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "counter": updated})
}

// SetCounterStatus flips a counter between available, busy and offline.
// Offline counters stop receiving assignments; an in-progress service
// finishes normally.
func SetCounterStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	counterID := ps.ByName("counterid")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !validStatus(req.Status) {
		http.Error(w, "Unknown counter status", http.StatusBadRequest)
		return
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Counter
	err := db.CountersCollection.FindOneAndUpdate(context.TODO(),
		bson.M{"counterid": counterID},
		bson.M{"$set": bson.M{"status": req.Status, "updatedAt": time.Now()}}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Counter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update counter status", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "counter": updated})
}

// GetCounter returns one counter with its live load.
func GetCounter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	counterID := ps.ByName("counterid")

	var counter models.Counter
	err := db.CountersCollection.FindOne(context.TODO(), bson.M{"counterid": counterID}).Decode(&counter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Counter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to fetch counter", http.StatusInternalServerError)
		return
	}

	load, err := db.QueueEntriesCollection.CountDocuments(context.TODO(), bson.M{
		"counterid": counterID,
		"status": bson.M{"$in": []string{
			models.StatusWaiting, models.StatusCalled, models.StatusInService,
		}},
	})
	if err != nil {
		log.Printf("counters: load count for %s failed: %v", counterID, err)
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"counter": counter,
		"load":    load,
	})
}

// ListCounters returns counters in number order, optionally filtered to
// those serving one service.
func ListCounters(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter := bson.M{}
	if serviceID := r.URL.Query().Get("service"); serviceID != "" {
		filter["services"] = serviceID
	}

	opts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}})
	cursor, err := db.CountersCollection.Find(context.TODO(), filter, opts)
	if err != nil {
		http.Error(w, "Failed to fetch counters", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(context.TODO())

	var list []models.Counter
	if err := cursor.All(context.TODO(), &list); err != nil {
		http.Error(w, "Failed to decode counters", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.Counter{}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "counters": list, "count": len(list)})
}

// DeleteCounter removes a counter that is not mid-service.
func DeleteCounter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	counterID := ps.ByName("counterid")

	var counter models.Counter
	err := db.CountersCollection.FindOne(context.TODO(), bson.M{"counterid": counterID}).Decode(&counter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Counter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to fetch counter", http.StatusInternalServerError)
		return
	}
	if counter.CurrentEntry != "" {
		http.Error(w, "Counter is serving an entry", http.StatusConflict)
		return
	}

	if _, err := db.CountersCollection.DeleteOne(context.TODO(), bson.M{"counterid": counterID}); err != nil {
		http.Error(w, "Failed to delete counter", http.StatusInternalServerError)
		return
	}

	utils.SendResponse(w, http.StatusOK, nil, "Counter deleted", nil)
}
