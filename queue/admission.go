package queue

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/utils"
)

// Admit validates and creates a queue entry for the customer.
//
// Checks run in a fixed order, each a distinct outcome: the service
// must exist and be active (ErrNotFound), the customer must not hold
// another active entry for it (ErrConflict), and the day's queue must
// have room (ErrCapacityExceeded). The capacity check, occupancy
// increment and token draw happen in one conditional store update, and
// the partial unique index on (customer, service, active) turns the
// duplicate-membership race into a conflict at insert time, so neither
// invariant depends on the read-then-write sequence above it.
//
// Estimator and scorer failures never block admission; the entry just
// carries a fallback estimate or no counter assignment.
func (e *Engine) Admit(ctx context.Context, customerID, serviceID string, priority int, notes string) (*models.QueueEntry, models.WaitEstimate, error) {
	var est models.WaitEstimate

	if priority < 0 {
		priority = 0
	}
	if priority > maxPriority {
		priority = maxPriority
	}

	svc, err := e.services.Get(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, est, fmt.Errorf("%w: service %s", ErrNotFound, serviceID)
		}
		return nil, est, fmt.Errorf("%w: loading service: %v", ErrUnavailable, err)
	}
	if !svc.Active {
		return nil, est, fmt.Errorf("%w: service %s is inactive", ErrNotFound, serviceID)
	}

	active, err := e.entries.HasActive(ctx, customerID, serviceID)
	if err != nil {
		return nil, est, fmt.Errorf("%w: membership check: %v", ErrUnavailable, err)
	}
	if active {
		return nil, est, fmt.Errorf("%w: already in queue for this service", ErrConflict)
	}

	q, err := e.queues.Reserve(ctx, serviceID, e.now().Format("2006-01-02"), e.defaultCapacity)
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrNotFound) {
			return nil, est, err
		}
		return nil, est, fmt.Errorf("%w: reserving queue slot: %v", ErrUnavailable, err)
	}

	queueSize := 0
	if n, err := e.entries.CountByService(ctx, serviceID, models.StatusWaiting); err == nil {
		queueSize = int(n)
	} else {
		log.Printf("queue: waiting count for %s failed, estimating from zero: %v", serviceID, err)
	}

	est = e.Estimate(ctx, serviceID, queueSize)

	counterID, _ := e.BestCounter(ctx, serviceID)

	entry := &models.QueueEntry{
		EntryID:       utils.GenerateID(),
		Token:         q.LastToken,
		QueueID:       q.QueueID,
		ServiceID:     serviceID,
		CustomerID:    customerID,
		CounterID:     counterID,
		Status:        models.StatusWaiting,
		Priority:      priority,
		EstimatedWait: est.EstimatedWaitMinutes,
		Notes:         notes,
		Active:        true,
		JoinedAt:      e.now(),
	}

	if err := e.entries.Insert(ctx, entry); err != nil {
		if relErr := e.queues.Release(ctx, q.QueueID); relErr != nil {
			log.Printf("queue: occupancy rollback for %s failed: %v", q.QueueID, relErr)
		}
		if errors.Is(err, ErrConflict) {
			return nil, est, fmt.Errorf("%w: already in queue for this service", ErrConflict)
		}
		return nil, est, fmt.Errorf("%w: persisting entry: %v", ErrUnavailable, err)
	}

	return entry, est, nil
}
