package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
)

var (
	admissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartq_admissions_total",
			Help: "Queue admission attempts by outcome",
		},
		[]string{"service_id", "outcome"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartq_transitions_total",
			Help: "Queue entry transitions by target status",
		},
		[]string{"target", "outcome"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartq_queue_depth",
			Help: "Current waiting entries per service",
		},
		[]string{"service_id"},
	)

	estimateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartq_estimate_duration_seconds",
			Help:    "Time spent computing wait estimates",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	degradedEstimates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartq_degraded_estimates_total",
			Help: "Estimates served from the fallback path",
		},
	)
)

func TrackAdmission(serviceID, outcome string) {
	admissionsTotal.WithLabelValues(serviceID, outcome).Inc()
}

func TrackTransition(target, outcome string) {
	transitionsTotal.WithLabelValues(target, outcome).Inc()
}

func TrackEstimate(d time.Duration, degraded bool) {
	estimateDuration.Observe(d.Seconds())
	if degraded {
		degradedEstimates.Inc()
	}
}

// StartCollector refreshes the queue depth gauges on a fixed interval.
func StartCollector(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			collectQueueDepth()
		}
	}()
}

func collectQueueDepth() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := db.QueueEntriesCollection.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"status": models.StatusWaiting}},
		{"$group": bson.M{"_id": "$serviceid", "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ServiceID string `bson:"_id"`
		Count     int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return
	}

	queueDepth.Reset()
	for _, row := range rows {
		queueDepth.WithLabelValues(row.ServiceID).Set(float64(row.Count))
	}
}
