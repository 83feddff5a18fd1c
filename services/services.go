package services

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

// Nominal durations shorter than this cannot produce a meaningful
// estimate.
const minDurationMinutes = 5

type servicePayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Duration    *int     `json:"duration"`
	Price       *float64 `json:"price"`
	Active      *bool    `json:"active"`
}

// CreateService registers a new service in the catalog.
func CreateService(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req servicePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Name == "" {
		http.Error(w, "Missing name", http.StatusBadRequest)
		return
	}
	if req.Duration == nil || *req.Duration < minDurationMinutes {
		http.Error(w, "Duration must be at least 5 minutes", http.StatusBadRequest)
		return
	}

	now := time.Now()
	svc := models.Service{
		ServiceID:   utils.GenerateID(),
		Name:        req.Name,
		Description: req.Description,
		Duration:    *req.Duration,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Price != nil {
		svc.Price = *req.Price
	}
	if req.Active != nil {
		svc.Active = *req.Active
	}

	if _, err := db.ServicesCollection.InsertOne(context.TODO(), svc); err != nil {
		log.Printf("services: insert failed: %v", err)
		http.Error(w, "Failed to create service", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "service": svc})
}

// UpdateService applies a partial update to a service.
func UpdateService(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	serviceID := ps.ByName("serviceid")

	var req servicePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	set := bson.M{"updatedAt": time.Now()}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Description != "" {
		set["description"] = req.Description
	}
	if req.Duration != nil {
		if *req.Duration < minDurationMinutes {
			http.Error(w, "Duration must be at least 5 minutes", http.StatusBadRequest)
			return
		}
		set["duration"] = *req.Duration
	}
	if req.Price != nil {
		set["price"] = *req.Price
	}
	if req.Active != nil {
		set["active"] = *req.Active
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Service
	err := db.ServicesCollection.FindOneAndUpdate(context.TODO(),
		bson.M{"serviceid": serviceID},
		bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("services: update of %s failed: %v", serviceID, err)
		http.Error(w, "Failed to update service", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "service": updated})
}

// GetService returns one service with its live waiting count.
func GetService(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	serviceID := ps.ByName("serviceid")

	var svc models.Service
	err := db.ServicesCollection.FindOne(context.TODO(), bson.M{"serviceid": serviceID}).Decode(&svc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to fetch service", http.StatusInternalServerError)
		return
	}

	waiting, err := db.QueueEntriesCollection.CountDocuments(context.TODO(), bson.M{
		"serviceid": serviceID,
		"status":    models.StatusWaiting,
	})
	if err != nil {
		log.Printf("services: waiting count for %s failed: %v", serviceID, err)
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"service": svc,
		"waiting": waiting,
	})
}

// ListServices returns the catalog, active services only unless
// all=true is given.
func ListServices(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter := bson.M{"active": true}
	if r.URL.Query().Get("all") == "true" {
		filter = bson.M{}
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetLimit(200)
	cursor, err := db.ServicesCollection.Find(context.TODO(), filter, opts)
	if err != nil {
		http.Error(w, "Failed to fetch services", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(context.TODO())

	var list []models.Service
	if err := cursor.All(context.TODO(), &list); err != nil {
		http.Error(w, "Failed to decode services", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.Service{}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "services": list, "count": len(list)})
}

// DeleteService deactivates a service. Completed history and open
// entries stay untouched; new admissions are refused once inactive.
func DeleteService(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	serviceID := ps.ByName("serviceid")

	res, err := db.ServicesCollection.UpdateOne(context.TODO(),
		bson.M{"serviceid": serviceID},
		bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now()}},
	)
	if err != nil {
		http.Error(w, "Failed to deactivate service", http.StatusInternalServerError)
		return
	}
	if res.MatchedCount == 0 {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}

	utils.SendResponse(w, http.StatusOK, nil, "Service deactivated", nil)
}
