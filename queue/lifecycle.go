package queue

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shehan-anujaya/SmartQ/models"
)

// Legal transitions. Terminal states (completed, cancelled, no-show)
// have no row: nothing leaves them.
var transitions = map[string]map[string]bool{
	models.StatusWaiting: {
		models.StatusCalled:    true,
		models.StatusInService: true,
		models.StatusCancelled: true,
		models.StatusNoShow:    true,
	},
	models.StatusCalled: {
		models.StatusInService: true,
		models.StatusCancelled: true,
		models.StatusNoShow:    true,
	},
	models.StatusInService: {
		models.StatusCompleted: true,
		models.StatusNoShow:    true,
	},
}

// Transition moves an entry to the target status and applies the
// required side effects. The status flip is a compare-and-set on the
// current status, so under concurrent requests exactly one transition
// into a terminal state succeeds; only that winner decrements queue
// occupancy and releases the counter.
func (e *Engine) Transition(ctx context.Context, entryID, target, counterID string) (*models.QueueEntry, error) {
	cur, err := e.entries.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: entry %s", ErrNotFound, entryID)
		}
		return nil, fmt.Errorf("%w: loading entry: %v", ErrUnavailable, err)
	}

	if !transitions[cur.Status][target] {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, target)
	}

	now := e.now()
	patch := EntryPatch{Status: target}

	switch target {
	case models.StatusCalled:
		patch.CalledAt = &now
		if counterID != "" {
			patch.CounterID = counterID
		}

	case models.StatusInService:
		patch.StartedAt = &now
		if counterID == "" {
			counterID = cur.CounterID
		}
		if counterID != "" {
			patch.CounterID = counterID
		}

	case models.StatusCompleted:
		patch.CompletedAt = &now
		if cur.StartedAt != nil {
			wait := roundMinutes(cur.StartedAt.Sub(cur.JoinedAt))
			patch.ActualWait = &wait
		}
		inactive := false
		patch.Active = &inactive

	case models.StatusCancelled, models.StatusNoShow:
		inactive := false
		patch.Active = &inactive
	}

	updated, err := e.entries.Swap(ctx, entryID, cur.Status, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: entry %s changed state concurrently", ErrInvalidTransition, entryID)
		}
		return nil, fmt.Errorf("%w: updating entry: %v", ErrUnavailable, err)
	}

	e.applySideEffects(ctx, updated, target)

	return updated, nil
}

// CallNext calls the next waiting entry for the service to the given
// counter: highest priority first, then token order.
func (e *Engine) CallNext(ctx context.Context, serviceID, counterID string) (*models.QueueEntry, error) {
	next, err := e.entries.NextWaiting(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no waiting entries for service %s", ErrNotFound, serviceID)
		}
		return nil, fmt.Errorf("%w: fetching next entry: %v", ErrUnavailable, err)
	}
	return e.Transition(ctx, next.EntryID, models.StatusCalled, counterID)
}

// applySideEffects runs the counter and occupancy bookkeeping after a
// committed status flip. Failures here are logged, not propagated; the
// reconciler repairs whatever a crash or partial failure leaves behind.
func (e *Engine) applySideEffects(ctx context.Context, entry *models.QueueEntry, target string) {
	switch target {
	case models.StatusCalled, models.StatusInService:
		if entry.CounterID != "" {
			if err := e.counters.Assign(ctx, entry.CounterID, entry.EntryID); err != nil {
				log.Printf("queue: assigning counter %s to entry %s failed: %v", entry.CounterID, entry.EntryID, err)
			}
		}

	case models.StatusCompleted:
		if entry.CounterID != "" && entry.StartedAt != nil && entry.CompletedAt != nil {
			e.updateRollingAverage(ctx, entry.CounterID, entry.CompletedAt.Sub(*entry.StartedAt).Minutes())
		}
		e.releaseCounter(ctx, entry)
		e.releaseOccupancy(ctx, entry.QueueID)

	case models.StatusCancelled, models.StatusNoShow:
		// No rolling-average update: only completed services count.
		e.releaseCounter(ctx, entry)
		e.releaseOccupancy(ctx, entry.QueueID)
	}
}

// updateRollingAverage smooths the counter's average service time:
// newAvg = avg == 0 ? d : 0.8*avg + 0.2*d.
func (e *Engine) updateRollingAverage(ctx context.Context, counterID string, serviceMinutes float64) {
	c, err := e.counters.Get(ctx, counterID)
	if err != nil {
		log.Printf("queue: loading counter %s for average update failed: %v", counterID, err)
		return
	}

	newAvg := serviceMinutes
	if c.AvgServiceTime > 0 {
		newAvg = c.AvgServiceTime*0.8 + serviceMinutes*0.2
	}

	if err := e.counters.SetAvgServiceTime(ctx, counterID, newAvg); err != nil {
		log.Printf("queue: updating average for counter %s failed: %v", counterID, err)
	}
}

func (e *Engine) releaseCounter(ctx context.Context, entry *models.QueueEntry) {
	if entry.CounterID == "" {
		return
	}
	if err := e.counters.Release(ctx, entry.CounterID, entry.EntryID); err != nil {
		log.Printf("queue: releasing counter %s failed: %v", entry.CounterID, err)
	}
}

func (e *Engine) releaseOccupancy(ctx context.Context, queueID string) {
	if err := e.queues.Release(ctx, queueID); err != nil {
		log.Printf("queue: occupancy decrement for %s failed: %v", queueID, err)
	}
}
