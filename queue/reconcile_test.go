package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehan-anujaya/SmartQ/models"
)

func TestReconcile_FreesStuckCounters(t *testing.T) {
	f := newFakes()

	stuckOnDone := testCounter("c1", 1, "svc1")
	stuckOnDone.Status = models.CounterBusy
	stuckOnDone.CurrentEntry = "done"

	stuckOnGhost := testCounter("c2", 2, "svc1")
	stuckOnGhost.Status = models.CounterBusy
	stuckOnGhost.CurrentEntry = "ghost"

	serving := testCounter("c3", 3, "svc1")
	serving.Status = models.CounterBusy
	serving.CurrentEntry = "live"

	f.counters.items = []*models.Counter{stuckOnDone, stuckOnGhost, serving}

	seedQueue(f, "svc1", "q1", 1)
	seedEntry(f, "done", "svc1", "q1", models.StatusCompleted, 0, 1)
	seedEntry(f, "live", "svc1", "q1", models.StatusInService, 0, 2)
	e := newTestEngine(f)

	err := e.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Empty(t, stuckOnDone.CurrentEntry)
	assert.Equal(t, models.CounterAvailable, stuckOnDone.Status)
	assert.Empty(t, stuckOnGhost.CurrentEntry)
	assert.Equal(t, models.CounterAvailable, stuckOnGhost.Status)

	// The counter with a genuinely active entry keeps it.
	assert.Equal(t, "live", serving.CurrentEntry)
	assert.Equal(t, models.CounterBusy, serving.Status)
}

func TestReconcile_RepairsOccupancyDrift(t *testing.T) {
	f := newFakes()
	seedQueue(f, "svc1", "q1", 5)
	seedEntry(f, "e1", "svc1", "q1", models.StatusWaiting, 0, 1)
	seedEntry(f, "e2", "svc1", "q1", models.StatusInService, 0, 2)
	seedEntry(f, "e3", "svc1", "q1", models.StatusCompleted, 0, 3)
	e := newTestEngine(f)

	err := e.Reconcile(context.Background())
	require.NoError(t, err)

	// Two entries are still active; the crashed decrements are undone.
	assert.Equal(t, 2, f.queues.get("q1").Occupancy)
}

func TestReconcile_LeavesAccurateStateAlone(t *testing.T) {
	f := newFakes()
	seedQueue(f, "svc1", "q1", 1)
	seedEntry(f, "e1", "svc1", "q1", models.StatusWaiting, 0, 1)
	e := newTestEngine(f)

	err := e.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.queues.get("q1").Occupancy)
}
