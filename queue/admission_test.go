package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehan-anujaya/SmartQ/models"
)

func TestAdmit_Success(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.counters.items = []*models.Counter{testCounter("c1", 1, "svc1")}
	e := newTestEngine(f)

	entry, est, err := e.Admit(context.Background(), "cust1", "svc1", 0, "walk-in")

	require.NoError(t, err)
	assert.Equal(t, 1, entry.Token)
	assert.Equal(t, models.StatusWaiting, entry.Status)
	assert.Equal(t, "cust1", entry.CustomerID)
	assert.Equal(t, "c1", entry.CounterID)
	assert.Equal(t, "walk-in", entry.Notes)
	assert.True(t, entry.Active)
	assert.Equal(t, f.now, entry.JoinedAt)
	assert.NotEmpty(t, entry.EntryID)

	// The estimate is frozen onto the entry at admission time.
	assert.Equal(t, est.EstimatedWaitMinutes, entry.EstimatedWait)
	assert.Equal(t, 0, est.EstimatedWaitMinutes)
	assert.Equal(t, 1, est.QueuePosition)

	q := f.queues.get(entry.QueueID)
	require.NotNil(t, q)
	assert.Equal(t, 1, q.Occupancy)
	assert.Equal(t, 1, q.LastToken)
}

func TestAdmit_UnknownService(t *testing.T) {
	f := newFakes()
	e := newTestEngine(f)

	_, _, err := e.Admit(context.Background(), "cust1", "ghost", 0, "")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.entries.items)
}

func TestAdmit_InactiveService(t *testing.T) {
	f := newFakes()
	svc := testService("svc1", 30)
	svc.Active = false
	f.services.items["svc1"] = svc
	e := newTestEngine(f)

	_, _, err := e.Admit(context.Background(), "cust1", "svc1", 0, "")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.entries.items)
}

func TestAdmit_DuplicateActiveEntry(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	e := newTestEngine(f)

	_, _, err := e.Admit(context.Background(), "cust1", "svc1", 0, "")
	require.NoError(t, err)

	_, _, err = e.Admit(context.Background(), "cust1", "svc1", 0, "")

	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, f.entries.items, 1)
	assert.Equal(t, 1, f.queues.get("q-svc1").Occupancy)
}

func TestAdmit_SameCustomerDifferentServices(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.services.items["svc2"] = testService("svc2", 10)
	e := newTestEngine(f)

	_, _, err := e.Admit(context.Background(), "cust1", "svc1", 0, "")
	require.NoError(t, err)

	_, _, err = e.Admit(context.Background(), "cust1", "svc2", 0, "")

	assert.NoError(t, err)
	assert.Len(t, f.entries.items, 2)
}

func TestAdmit_QueueFull(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.queues.byKey["svc1|2025-06-02"] = &models.Queue{
		QueueID:   "q-svc1",
		ServiceID: "svc1",
		Date:      "2025-06-02",
		Status:    models.QueueOpen,
		Capacity:  2,
		Occupancy: 2,
		LastToken: 2,
	}
	e := newTestEngine(f)

	_, _, err := e.Admit(context.Background(), "cust3", "svc1", 0, "")

	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Empty(t, f.entries.items)

	q := f.queues.get("q-svc1")
	assert.Equal(t, 2, q.Occupancy)
	assert.Equal(t, 2, q.LastToken)
}

func TestAdmit_ClosedQueue(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.queues.byKey["svc1|2025-06-02"] = &models.Queue{
		QueueID:   "q-svc1",
		ServiceID: "svc1",
		Date:      "2025-06-02",
		Status:    models.QueueClosed,
	}
	e := newTestEngine(f)

	_, _, err := e.Admit(context.Background(), "cust1", "svc1", 0, "")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.entries.items)
}

func TestAdmit_PriorityClamped(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.services.items["svc2"] = testService("svc2", 30)
	e := newTestEngine(f)

	high, _, err := e.Admit(context.Background(), "cust1", "svc1", 99, "")
	require.NoError(t, err)
	assert.Equal(t, 10, high.Priority)

	low, _, err := e.Admit(context.Background(), "cust2", "svc2", -5, "")
	require.NoError(t, err)
	assert.Equal(t, 0, low.Priority)
}

func TestAdmit_DegradedEstimateStillAdmits(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.samples.err = assert.AnError
	e := newTestEngine(f)

	entry, est, err := e.Admit(context.Background(), "cust1", "svc1", 0, "")

	require.NoError(t, err)
	assert.True(t, est.Degraded)
	assert.InDelta(t, 0.3, est.Confidence, 1e-9)
	assert.Equal(t, est.EstimatedWaitMinutes, entry.EstimatedWait)
}

func TestAdmit_InsertRaceRollsBackOccupancy(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.entries.insertErr = ErrConflict
	e := newTestEngine(f)

	_, _, err := e.Admit(context.Background(), "cust1", "svc1", 0, "")

	assert.ErrorIs(t, err, ErrConflict)
	// The reserved slot is handed back when the insert loses the race.
	assert.Equal(t, 0, f.queues.get("q-svc1").Occupancy)
}

func TestAdmit_TokensAndEstimatesTrackQueueGrowth(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	e := newTestEngine(f)

	first, _, err := e.Admit(context.Background(), "cust1", "svc1", 0, "")
	require.NoError(t, err)
	second, _, err := e.Admit(context.Background(), "cust2", "svc1", 0, "")
	require.NoError(t, err)

	assert.Equal(t, 1, first.Token)
	assert.Equal(t, 2, second.Token)

	// One person waiting ahead: 30 min nominal with buffer.
	assert.Equal(t, 0, first.EstimatedWait)
	assert.Equal(t, 35, second.EstimatedWait)
}
