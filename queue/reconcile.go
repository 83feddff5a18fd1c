package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Reconcile repairs state a crash between an entry transition and its
// side effects can leave behind: counters stuck busy on a finished or
// missing entry, and queue occupancy drifting from the actual active
// entry count.
func (e *Engine) Reconcile(ctx context.Context) error {
	busy, err := e.counters.Occupied(ctx)
	if err != nil {
		return fmt.Errorf("listing occupied counters: %w", err)
	}
	for _, c := range busy {
		entry, err := e.entries.Get(ctx, c.CurrentEntry)
		if err != nil && !errors.Is(err, ErrNotFound) {
			continue
		}
		if err == nil && entry.Active {
			continue
		}
		if err := e.counters.Release(ctx, c.CounterID, c.CurrentEntry); err != nil {
			log.Printf("queue: reconcile release of counter %s failed: %v", c.CounterID, err)
		}
	}

	open, err := e.queues.Open(ctx)
	if err != nil {
		return fmt.Errorf("listing open queues: %w", err)
	}
	for _, q := range open {
		n, err := e.entries.CountActiveByQueue(ctx, q.QueueID)
		if err != nil {
			continue
		}
		if int(n) != q.Occupancy {
			log.Printf("queue: occupancy drift on %s: stored %d, actual %d", q.QueueID, q.Occupancy, n)
			if err := e.queues.SetOccupancy(ctx, q.QueueID, int(n)); err != nil {
				log.Printf("queue: reconcile occupancy for %s failed: %v", q.QueueID, err)
			}
		}
	}
	return nil
}

// StartReconciler runs one repair pass immediately, then repeats on the
// given interval.
func StartReconciler(interval time.Duration) {
	go func() {
		run := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := eng.Reconcile(ctx); err != nil {
				log.Printf("queue: reconcile pass failed: %v", err)
			}
		}

		run()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			run()
		}
	}()
}
