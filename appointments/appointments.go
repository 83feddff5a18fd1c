package appointments

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

// CreateAppointment books a slot for the authenticated customer.
func CreateAppointment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ServiceID string `json:"serviceid"`
		Date      string `json:"date"`
		TimeSlot  string `json:"timeSlot"`
		Notes     string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.ServiceID == "" || req.TimeSlot == "" {
		http.Error(w, "Missing serviceid or timeSlot", http.StatusBadRequest)
		return
	}
	date, err := utils.ParseDate(req.Date)
	if err != nil {
		http.Error(w, "Invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var svc models.Service
	err = db.ServicesCollection.FindOne(context.TODO(), bson.M{"serviceid": req.ServiceID}).Decode(&svc)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && !svc.Active) {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to fetch service", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	apt := models.Appointment{
		AppointmentID: utils.GenerateID(),
		CustomerID:    requesterID,
		ServiceID:     req.ServiceID,
		Date:          date,
		TimeSlot:      req.TimeSlot,
		Status:        models.AppointmentScheduled,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := db.AppointmentsCollection.InsertOne(context.TODO(), apt); err != nil {
		log.Printf("appointments: insert failed: %v", err)
		http.Error(w, "Failed to create appointment", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "appointment": apt})
}

// GetAppointment returns one appointment to its owner or staff.
func GetAppointment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	apt, code := loadAppointment(ps.ByName("appointmentid"))
	if code != 0 {
		http.Error(w, "Appointment not found", code)
		return
	}
	if apt.CustomerID != requesterID && !isStaff(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "appointment": apt})
}

// ListAppointments returns the requester's appointments, optionally
// filtered by date or status. Staff see every customer's bookings.
func ListAppointments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filter := bson.M{"customerid": requesterID}
	if isStaff(r) {
		filter = bson.M{}
		if customer := r.URL.Query().Get("customer"); customer != "" {
			filter["customerid"] = customer
		}
	}
	if date := r.URL.Query().Get("date"); date != "" {
		filter["date"] = date
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "timeSlot", Value: 1}}).
		SetLimit(200)
	cursor, err := db.AppointmentsCollection.Find(context.TODO(), filter, opts)
	if err != nil {
		http.Error(w, "Failed to fetch appointments", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(context.TODO())

	var list []models.Appointment
	if err := cursor.All(context.TODO(), &list); err != nil {
		http.Error(w, "Failed to decode appointments", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.Appointment{}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "appointments": list, "count": len(list)})
}

// UpdateAppointment reschedules a still-scheduled appointment.
func UpdateAppointment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	appointmentID := ps.ByName("appointmentid")

	apt, code := loadAppointment(appointmentID)
	if code != 0 {
		http.Error(w, "Appointment not found", code)
		return
	}
	if apt.CustomerID != requesterID && !isStaff(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req struct {
		Date     string `json:"date"`
		TimeSlot string `json:"timeSlot"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	set := bson.M{"updatedAt": time.Now()}
	if req.Date != "" {
		date, err := utils.ParseDate(req.Date)
		if err != nil {
			http.Error(w, "Invalid date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		set["date"] = date
	}
	if req.TimeSlot != "" {
		set["timeSlot"] = req.TimeSlot
	}
	if req.Notes != "" {
		set["notes"] = req.Notes
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Appointment
	err := db.AppointmentsCollection.FindOneAndUpdate(context.TODO(),
		bson.M{"appointmentid": appointmentID, "status": models.AppointmentScheduled},
		bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Only scheduled appointments can be rescheduled", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update appointment", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "appointment": updated})
}

// CancelAppointment cancels a scheduled appointment.
func CancelAppointment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID := utils.GetUserIDFromRequest(r)
	if requesterID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	appointmentID := ps.ByName("appointmentid")

	apt, code := loadAppointment(appointmentID)
	if code != 0 {
		http.Error(w, "Appointment not found", code)
		return
	}
	if apt.CustomerID != requesterID && !isStaff(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	res, err := db.AppointmentsCollection.UpdateOne(context.TODO(),
		bson.M{"appointmentid": appointmentID, "status": models.AppointmentScheduled},
		bson.M{"$set": bson.M{"status": models.AppointmentCancelled, "updatedAt": time.Now()}},
	)
	if err != nil {
		http.Error(w, "Failed to cancel appointment", http.StatusInternalServerError)
		return
	}
	if res.MatchedCount == 0 {
		http.Error(w, "Only scheduled appointments can be cancelled", http.StatusConflict)
		return
	}

	utils.SendResponse(w, http.StatusOK, nil, "Appointment cancelled", nil)
}

// SetAppointmentStatus lets staff close out an appointment. Check-in
// has its own flow, so checked-in is not settable here.
func SetAppointmentStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !isStaff(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	appointmentID := ps.ByName("appointmentid")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	switch req.Status {
	case models.AppointmentCompleted, models.AppointmentCancelled, models.AppointmentNoShow:
	default:
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Appointment
	err := db.AppointmentsCollection.FindOneAndUpdate(context.TODO(),
		bson.M{"appointmentid": appointmentID},
		bson.M{"$set": bson.M{"status": req.Status, "updatedAt": time.Now()}}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update appointment", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "appointment": updated})
}

// loadAppointment fetches by id; the second return is an HTTP status on
// failure, 0 on success.
func loadAppointment(appointmentID string) (*models.Appointment, int) {
	var apt models.Appointment
	err := db.AppointmentsCollection.FindOne(context.TODO(), bson.M{"appointmentid": appointmentID}).Decode(&apt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, http.StatusNotFound
	}
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	return &apt, 0
}

func isStaff(r *http.Request) bool {
	roles := utils.GetRolesFromRequest(r)
	return utils.Contains(roles, "staff") || utils.Contains(roles, "admin")
}
