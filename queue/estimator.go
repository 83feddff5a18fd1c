package queue

import (
	"context"
	"math"

	"github.com/shehan-anujaya/SmartQ/models"
)

// Estimate computes the expected wait for joining the service's queue
// behind queueSize waiting entries. It never fails: when the service or
// its history cannot be read it falls back to defaults, marks the
// result Degraded and pins confidence at the fallback value. Callers
// therefore always have a usable estimate, just a less confident one.
func (e *Engine) Estimate(ctx context.Context, serviceID string, queueSize int) models.WaitEstimate {
	if queueSize < 0 {
		queueSize = 0
	}
	est := models.WaitEstimate{QueuePosition: queueSize + 1}

	svc, err := e.services.Get(ctx, serviceID)
	if err != nil {
		est.AvgServiceMinutes = defaultServiceMins
		est.EstimatedWaitMinutes = defaultServiceMins * queueSize
		est.Confidence = fallbackConfidence
		est.Degraded = true
		return est
	}

	avg := svc.Duration

	samples, err := e.samples.RecentCompleted(ctx, serviceID, maxSamples)
	if err != nil {
		est.AvgServiceMinutes = avg
		est.EstimatedWaitMinutes = int(math.Round(float64(avg)*bufferFactor)) * queueSize
		est.Confidence = fallbackConfidence
		est.Degraded = true
		return est
	}

	if len(samples) > 0 {
		var total float64
		for _, s := range samples {
			total += s.CompletedAt.Sub(s.StartedAt).Minutes()
		}
		avg = int(math.Round(total / float64(len(samples))))
	}

	// 15% buffer over the observed average absorbs day-to-day variance.
	adjusted := int(math.Round(float64(avg) * bufferFactor))

	est.AvgServiceMinutes = avg
	est.EstimatedWaitMinutes = adjusted * queueSize
	est.Confidence = math.Min(baseConfidence+float64(len(samples))/100, maxConfidence)
	return est
}
