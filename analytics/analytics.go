package analytics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/utils"
)

// ServiceStat is one service's rollup over a window of entries.
type ServiceStat struct {
	ServiceID string  `bson:"_id" json:"serviceid"`
	Name      string  `bson:"name" json:"name"`
	Joined    int     `bson:"joined" json:"joined"`
	Completed int     `bson:"completed" json:"completed"`
	NoShows   int     `bson:"noShows" json:"noShows"`
	Cancelled int     `bson:"cancelled" json:"cancelled"`
	AvgWait   float64 `bson:"avgWait" json:"avgWaitMinutes"`
}

// WindowStats rolls up the last days of entries by service.
func WindowStats(days int) ([]ServiceStat, error) {
	since := time.Now().AddDate(0, 0, -days)
	return rollupByService(bson.M{"joinedAt": bson.M{"$gte": since}})
}

// HourHistogram counts joins per hour of day over the last days,
// indexed 0-23.
func HourHistogram(days int) ([]int, error) {
	since := time.Now().AddDate(0, 0, -days)
	return hourHistogram(bson.M{"joinedAt": bson.M{"$gte": since}})
}

// PeakHours buckets joins by hour of day over the requested window so
// staff can see when the queue actually fills up.
func PeakHours(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			http.Error(w, "Invalid days, want 1-90", http.StatusBadRequest)
			return
		}
		days = n
	}
	since := time.Now().AddDate(0, 0, -days)

	match := bson.M{"joinedAt": bson.M{"$gte": since}}
	if serviceID := r.URL.Query().Get("service"); serviceID != "" {
		match["serviceid"] = serviceID
	}

	hours, err := hourHistogram(match)
	if err != nil {
		http.Error(w, "Failed to aggregate entries", http.StatusInternalServerError)
		return
	}

	peakHour, peakCount := 0, 0
	for h, n := range hours {
		if n > peakCount {
			peakHour, peakCount = h, n
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":   true,
		"days":      days,
		"hours":     hours,
		"peakHour":  peakHour,
		"peakCount": peakCount,
	})
}

// ServiceStats rolls up outcomes and average customer wait per service
// over the requested window.
func ServiceStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			http.Error(w, "Invalid days, want 1-365", http.StatusBadRequest)
			return
		}
		days = n
	}

	stats, err := WindowStats(days)
	if err != nil {
		http.Error(w, "Failed to aggregate entries", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":  true,
		"days":     days,
		"services": stats,
	})
}

func hourHistogram(match bson.M) ([]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$hour": "$joinedAt"},
			"total": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := db.QueueEntriesCollection.Aggregate(context.TODO(), pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(context.TODO())

	var buckets []struct {
		Hour  int `bson:"_id"`
		Total int `bson:"total"`
	}
	if err := cursor.All(context.TODO(), &buckets); err != nil {
		return nil, err
	}

	hours := make([]int, 24)
	for _, b := range buckets {
		if b.Hour >= 0 && b.Hour <= 23 {
			hours[b.Hour] = b.Total
		}
	}
	return hours, nil
}

// rollupByService groups matching entries by service with outcome
// counts and the average recorded wait, carrying the service name in
// from the services collection.
func rollupByService(match bson.M) ([]ServiceStat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$serviceid",
			"joined":    bson.M{"$sum": 1},
			"completed": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", models.StatusCompleted}}, 1, 0}}},
			"noShows":   bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", models.StatusNoShow}}, 1, 0}}},
			"cancelled": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", models.StatusCancelled}}, 1, 0}}},
			"avgWait":   bson.M{"$avg": "$actualWait"},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "services",
			"localField":   "_id",
			"foreignField": "serviceid",
			"as":           "svc",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$svc", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$addFields", Value: bson.M{"name": "$svc.name"}}},
		{{Key: "$sort", Value: bson.M{"joined": -1}}},
	}

	cursor, err := db.QueueEntriesCollection.Aggregate(context.TODO(), pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(context.TODO())

	var stats []ServiceStat
	if err := cursor.All(context.TODO(), &stats); err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []ServiceStat{}
	}
	for i := range stats {
		stats[i].AvgWait = math.Round(stats[i].AvgWait*10) / 10
	}
	return stats, nil
}
