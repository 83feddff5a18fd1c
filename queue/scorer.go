package queue

import (
	"context"

	"github.com/shehan-anujaya/SmartQ/models"
)

// BestCounter ranks the non-offline counters supporting the service and
// returns the winner. Scoring starts every candidate at 100, subtracts
// 10 per active entry already routed to it and half its rolling average
// service time, and grants +30 when nothing is in service there. Ties
// keep the first candidate seen (candidates arrive in counter-number
// order, so the ranking is stable).
//
// Assignment is an optimization, not a requirement: any read error
// yields ("", false) and the caller proceeds unassigned.
func (e *Engine) BestCounter(ctx context.Context, serviceID string) (string, bool) {
	candidates, err := e.counters.ActiveSupporting(ctx, serviceID)
	if err != nil || len(candidates) == 0 {
		return "", false
	}

	bestID := ""
	bestScore := -1.0

	for _, c := range candidates {
		load, err := e.entries.CountByCounter(ctx, c.CounterID,
			models.StatusWaiting, models.StatusCalled, models.StatusInService)
		if err != nil {
			return "", false
		}
		inService, err := e.entries.CountByCounter(ctx, c.CounterID, models.StatusInService)
		if err != nil {
			return "", false
		}

		score := 100.0
		score -= 10 * float64(load)
		score -= 0.5 * c.AvgServiceTime
		if inService == 0 {
			score += 30
		}
		if score < 0 {
			score = 0
		}

		if score > bestScore {
			bestScore = score
			bestID = c.CounterID
		}
	}

	return bestID, bestID != ""
}
