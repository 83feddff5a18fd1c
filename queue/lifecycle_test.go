package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehan-anujaya/SmartQ/models"
)

func seedQueue(f *fakes, serviceID, queueID string, occupancy int) {
	f.queues.byKey[serviceID+"|"+f.now.Format("2006-01-02")] = &models.Queue{
		QueueID:   queueID,
		ServiceID: serviceID,
		Date:      f.now.Format("2006-01-02"),
		Status:    models.QueueOpen,
		Occupancy: occupancy,
	}
}

func seedEntry(f *fakes, id, serviceID, queueID, status string, priority, token int) *models.QueueEntry {
	e := &models.QueueEntry{
		EntryID:    id,
		Token:      token,
		QueueID:    queueID,
		ServiceID:  serviceID,
		CustomerID: "cust-" + id,
		Status:     status,
		Priority:   priority,
		Active:     status == models.StatusWaiting || status == models.StatusCalled || status == models.StatusInService,
		JoinedAt:   f.now,
	}
	f.entries.items[id] = e
	return e
}

func TestTransition_FullServiceFlow(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.counters.items = []*models.Counter{testCounter("c1", 1, "svc1")}
	e := newTestEngine(f)

	// Joins at 09:00.
	entry, _, err := e.Admit(context.Background(), "cust1", "svc1", 0, "")
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)
	called, err := e.Transition(context.Background(), entry.EntryID, models.StatusCalled, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCalled, called.Status)
	require.NotNil(t, called.CalledAt)
	assert.Equal(t, entry.EntryID, f.counters.find("c1").CurrentEntry)
	assert.Equal(t, models.CounterBusy, f.counters.find("c1").Status)

	// Service starts at 09:05: five minutes waited.
	f.now = f.now.Add(3 * time.Minute)
	started, err := e.Transition(context.Background(), entry.EntryID, models.StatusInService, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInService, started.Status)
	require.NotNil(t, started.StartedAt)

	// Finishes at 09:15: ten minutes of service.
	f.now = f.now.Add(10 * time.Minute)
	done, err := e.Transition(context.Background(), entry.EntryID, models.StatusCompleted, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.False(t, done.Active)
	assert.Equal(t, 5, done.ActualWait)
	require.NotNil(t, done.CompletedAt)

	c := f.counters.find("c1")
	assert.InDelta(t, 10, c.AvgServiceTime, 1e-9)
	assert.Equal(t, models.CounterAvailable, c.Status)
	assert.Empty(t, c.CurrentEntry)

	assert.Equal(t, 0, f.queues.get(done.QueueID).Occupancy)
}

func TestTransition_RollingAverageSmoothing(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.counters.items = []*models.Counter{testCounter("c1", 1, "svc1")}
	e := newTestEngine(f)

	serve := func(customer string, serviceMins int) {
		entry, _, err := e.Admit(context.Background(), customer, "svc1", 0, "")
		require.NoError(t, err)
		_, err = e.Transition(context.Background(), entry.EntryID, models.StatusInService, "c1")
		require.NoError(t, err)
		f.now = f.now.Add(time.Duration(serviceMins) * time.Minute)
		_, err = e.Transition(context.Background(), entry.EntryID, models.StatusCompleted, "")
		require.NoError(t, err)
	}

	// First completion seeds the average outright.
	serve("cust1", 10)
	assert.InDelta(t, 10, f.counters.find("c1").AvgServiceTime, 1e-9)

	// Later completions blend in at one fifth weight.
	serve("cust2", 20)
	assert.InDelta(t, 12, f.counters.find("c1").AvgServiceTime, 1e-9)
}

func TestTransition_KeepsAssignedCounterWhenNoneGiven(t *testing.T) {
	f := newFakes()
	f.counters.items = []*models.Counter{testCounter("c1", 1, "svc1")}
	seedQueue(f, "svc1", "q1", 1)
	seedEntry(f, "e1", "svc1", "q1", models.StatusCalled, 0, 1)
	f.entries.items["e1"].CounterID = "c1"
	e := newTestEngine(f)

	// No counter named in the request keeps the earlier assignment.
	started, err := e.Transition(context.Background(), "e1", models.StatusInService, "")

	require.NoError(t, err)
	assert.Equal(t, "c1", started.CounterID)
	assert.Equal(t, "e1", f.counters.find("c1").CurrentEntry)
}

func TestTransition_TerminalStatesAreImmutable(t *testing.T) {
	targets := []string{
		models.StatusWaiting, models.StatusCalled, models.StatusInService,
		models.StatusCompleted, models.StatusCancelled, models.StatusNoShow,
	}
	for _, terminal := range []string{models.StatusCompleted, models.StatusCancelled, models.StatusNoShow} {
		for _, target := range targets {
			t.Run(fmt.Sprintf("%s->%s", terminal, target), func(t *testing.T) {
				f := newFakes()
				seedQueue(f, "svc1", "q1", 0)
				seedEntry(f, "e1", "svc1", "q1", terminal, 0, 1)
				e := newTestEngine(f)

				_, err := e.Transition(context.Background(), "e1", target, "")

				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, terminal, f.entries.items["e1"].Status)
				// Occupancy was already settled when the entry went
				// terminal; a rejected transition must not touch it.
				assert.Equal(t, 0, f.queues.get("q1").Occupancy)
			})
		}
	}
}

func TestTransition_IllegalHops(t *testing.T) {
	cases := []struct{ from, to string }{
		{models.StatusWaiting, models.StatusCompleted},
		{models.StatusCalled, models.StatusCompleted},
		{models.StatusInService, models.StatusCalled},
		{models.StatusInService, models.StatusCancelled},
		{models.StatusCalled, models.StatusWaiting},
	}
	for _, tc := range cases {
		t.Run(tc.from+"->"+tc.to, func(t *testing.T) {
			f := newFakes()
			seedQueue(f, "svc1", "q1", 1)
			seedEntry(f, "e1", "svc1", "q1", tc.from, 0, 1)
			e := newTestEngine(f)

			_, err := e.Transition(context.Background(), "e1", tc.to, "")

			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestTransition_UnknownEntry(t *testing.T) {
	f := newFakes()
	e := newTestEngine(f)

	_, err := e.Transition(context.Background(), "ghost", models.StatusCalled, "")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransition_ConcurrentFlipLosesCleanly(t *testing.T) {
	f := newFakes()
	seedQueue(f, "svc1", "q1", 1)
	seedEntry(f, "e1", "svc1", "q1", models.StatusWaiting, 0, 1)
	e := newTestEngine(f)

	// Another request lands between the read and the status flip.
	f.entries.beforeSwap = func() {
		f.entries.items["e1"].Status = models.StatusCancelled
		f.entries.items["e1"].Active = false
	}

	_, err := e.Transition(context.Background(), "e1", models.StatusCalled, "")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusCancelled, f.entries.items["e1"].Status)
}

func TestTransition_CancelReleasesWithoutAverageUpdate(t *testing.T) {
	f := newFakes()
	c := testCounter("c1", 1, "svc1")
	c.AvgServiceTime = 7
	c.Status = models.CounterBusy
	c.CurrentEntry = "e1"
	f.counters.items = []*models.Counter{c}
	seedQueue(f, "svc1", "q1", 1)
	seedEntry(f, "e1", "svc1", "q1", models.StatusCalled, 0, 1)
	f.entries.items["e1"].CounterID = "c1"
	e := newTestEngine(f)

	updated, err := e.Transition(context.Background(), "e1", models.StatusCancelled, "")

	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Nil(t, updated.CompletedAt)

	assert.Equal(t, 0, f.queues.get("q1").Occupancy)
	assert.Equal(t, models.CounterAvailable, c.Status)
	assert.Empty(t, c.CurrentEntry)
	assert.InDelta(t, 7, c.AvgServiceTime, 1e-9)
}

func TestTransition_NoShowFromInService(t *testing.T) {
	f := newFakes()
	c := testCounter("c1", 1, "svc1")
	c.Status = models.CounterBusy
	c.CurrentEntry = "e1"
	f.counters.items = []*models.Counter{c}
	seedQueue(f, "svc1", "q1", 1)
	seedEntry(f, "e1", "svc1", "q1", models.StatusInService, 0, 1)
	f.entries.items["e1"].CounterID = "c1"
	e := newTestEngine(f)

	updated, err := e.Transition(context.Background(), "e1", models.StatusNoShow, "")

	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, 0, updated.ActualWait)
	assert.Equal(t, 0, f.queues.get("q1").Occupancy)
	assert.Empty(t, c.CurrentEntry)
	assert.InDelta(t, 0, c.AvgServiceTime, 1e-9)
}

func TestCallNext_PriorityThenTokenOrder(t *testing.T) {
	f := newFakes()
	f.counters.items = []*models.Counter{testCounter("c1", 1, "svc1")}
	seedQueue(f, "svc1", "q1", 4)
	seedEntry(f, "e1", "svc1", "q1", models.StatusWaiting, 0, 1)
	seedEntry(f, "e2", "svc1", "q1", models.StatusWaiting, 5, 2)
	seedEntry(f, "e3", "svc1", "q1", models.StatusWaiting, 5, 3)
	seedEntry(f, "e4", "svc1", "q1", models.StatusWaiting, 0, 4)
	e := newTestEngine(f)

	var order []string
	for i := 0; i < 4; i++ {
		entry, err := e.CallNext(context.Background(), "svc1", "c1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCalled, entry.Status)
		assert.Equal(t, "c1", entry.CounterID)
		order = append(order, entry.EntryID)
	}

	assert.Equal(t, []string{"e2", "e3", "e1", "e4"}, order)

	_, err := e.CallNext(context.Background(), "svc1", "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}
