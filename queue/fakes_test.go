package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shehan-anujaya/SmartQ/models"
)

// In-memory stores for engine tests. Each fake mirrors the contract of
// its Mongo counterpart, including the conditional-update semantics the
// engine leans on.

type fakes struct {
	services *fakeServices
	samples  *fakeSamples
	entries  *fakeEntries
	queues   *fakeQueues
	counters *fakeCounters

	now time.Time
}

func newFakes() *fakes {
	return &fakes{
		services: &fakeServices{items: map[string]*models.Service{}},
		samples:  &fakeSamples{},
		entries:  &fakeEntries{items: map[string]*models.QueueEntry{}},
		queues:   &fakeQueues{byKey: map[string]*models.Queue{}},
		counters: &fakeCounters{},
		now:      time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakes) stores() Stores {
	return Stores{
		Services: f.services,
		Samples:  f.samples,
		Entries:  f.entries,
		Queues:   f.queues,
		Counters: f.counters,
	}
}

func newTestEngine(f *fakes) *Engine {
	e := NewEngine(f.stores())
	e.defaultCapacity = 0
	e.now = func() time.Time { return f.now }
	return e
}

func testService(id string, duration int) *models.Service {
	return &models.Service{
		ServiceID: id,
		Name:      "Service " + id,
		Duration:  duration,
		Active:    true,
	}
}

// makeSamples builds count completed samples of the given duration.
func makeSamples(count, minutes int) []models.ServiceSample {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	out := make([]models.ServiceSample, count)
	for i := range out {
		start := base.Add(time.Duration(i) * time.Hour)
		out[i] = models.ServiceSample{
			StartedAt:   start,
			CompletedAt: start.Add(time.Duration(minutes) * time.Minute),
		}
	}
	return out
}

type fakeServices struct {
	items map[string]*models.Service
	err   error
}

func (f *fakeServices) Get(_ context.Context, serviceID string) (*models.Service, error) {
	if f.err != nil {
		return nil, f.err
	}
	svc, ok := f.items[serviceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

type fakeSamples struct {
	samples []models.ServiceSample
	err     error
}

func (f *fakeSamples) RecentCompleted(_ context.Context, _ string, limit int64) ([]models.ServiceSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	if int64(len(f.samples)) > limit {
		return f.samples[:limit], nil
	}
	return f.samples, nil
}

type fakeEntries struct {
	items map[string]*models.QueueEntry

	insertErr  error
	countErr   error
	beforeSwap func()
}

func (f *fakeEntries) Insert(_ context.Context, entry *models.QueueEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, e := range f.items {
		if e.CustomerID == entry.CustomerID && e.ServiceID == entry.ServiceID && e.Active {
			return ErrConflict
		}
	}
	cp := *entry
	f.items[entry.EntryID] = &cp
	return nil
}

func (f *fakeEntries) Get(_ context.Context, entryID string) (*models.QueueEntry, error) {
	e, ok := f.items[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEntries) HasActive(_ context.Context, customerID, serviceID string) (bool, error) {
	if f.countErr != nil {
		return false, f.countErr
	}
	for _, e := range f.items {
		if e.CustomerID == customerID && e.ServiceID == serviceID && e.Active {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEntries) CountByService(_ context.Context, serviceID string, statuses ...string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, e := range f.items {
		if e.ServiceID == serviceID && statusIn(e.Status, statuses) {
			n++
		}
	}
	return n, nil
}

func (f *fakeEntries) CountByCounter(_ context.Context, counterID string, statuses ...string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, e := range f.items {
		if e.CounterID == counterID && statusIn(e.Status, statuses) {
			n++
		}
	}
	return n, nil
}

func (f *fakeEntries) CountActiveByQueue(_ context.Context, queueID string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, e := range f.items {
		if e.QueueID == queueID && e.Active {
			n++
		}
	}
	return n, nil
}

func (f *fakeEntries) NextWaiting(_ context.Context, serviceID string) (*models.QueueEntry, error) {
	var best *models.QueueEntry
	for _, e := range f.items {
		if e.ServiceID != serviceID || e.Status != models.StatusWaiting {
			continue
		}
		if best == nil || e.Priority > best.Priority ||
			(e.Priority == best.Priority && e.Token < best.Token) {
			best = e
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeEntries) Swap(_ context.Context, entryID, fromStatus string, patch EntryPatch) (*models.QueueEntry, error) {
	if f.beforeSwap != nil {
		f.beforeSwap()
	}
	e, ok := f.items[entryID]
	if !ok || e.Status != fromStatus {
		return nil, ErrNotFound
	}
	e.Status = patch.Status
	if patch.CounterID != "" {
		e.CounterID = patch.CounterID
	}
	if patch.CalledAt != nil {
		e.CalledAt = patch.CalledAt
	}
	if patch.StartedAt != nil {
		e.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		e.CompletedAt = patch.CompletedAt
	}
	if patch.ActualWait != nil {
		e.ActualWait = *patch.ActualWait
	}
	if patch.Active != nil {
		e.Active = *patch.Active
	}
	cp := *e
	return &cp, nil
}

func statusIn(status string, statuses []string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeQueues struct {
	byKey map[string]*models.Queue
	err   error
}

func (f *fakeQueues) get(queueID string) *models.Queue {
	for _, q := range f.byKey {
		if q.QueueID == queueID {
			return q
		}
	}
	return nil
}

func (f *fakeQueues) Reserve(_ context.Context, serviceID, date string, capacity int) (*models.Queue, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := serviceID + "|" + date
	q, ok := f.byKey[key]
	if !ok {
		q = &models.Queue{
			QueueID:   "q-" + serviceID,
			ServiceID: serviceID,
			Date:      date,
			Status:    models.QueueOpen,
			Capacity:  capacity,
		}
		f.byKey[key] = q
	}
	if q.Status != models.QueueOpen {
		return nil, fmt.Errorf("%w: queue closed", ErrNotFound)
	}
	if q.Capacity > 0 && q.Occupancy >= q.Capacity {
		return nil, fmt.Errorf("%w: queue full", ErrCapacityExceeded)
	}
	q.Occupancy++
	q.LastToken++
	cp := *q
	return &cp, nil
}

func (f *fakeQueues) Release(_ context.Context, queueID string) error {
	if q := f.get(queueID); q != nil && q.Occupancy > 0 {
		q.Occupancy--
	}
	return nil
}

func (f *fakeQueues) Open(_ context.Context) ([]models.Queue, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Queue
	for _, q := range f.byKey {
		if q.Status == models.QueueOpen {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQueues) SetOccupancy(_ context.Context, queueID string, occupancy int) error {
	if q := f.get(queueID); q != nil {
		q.Occupancy = occupancy
	}
	return nil
}

type fakeCounters struct {
	items   []*models.Counter
	listErr error
}

func (f *fakeCounters) find(counterID string) *models.Counter {
	for _, c := range f.items {
		if c.CounterID == counterID {
			return c
		}
	}
	return nil
}

func (f *fakeCounters) Get(_ context.Context, counterID string) (*models.Counter, error) {
	c := f.find(counterID)
	if c == nil {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCounters) ActiveSupporting(_ context.Context, serviceID string) ([]models.Counter, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Counter
	for _, c := range f.items {
		if c.Status == models.CounterOffline {
			continue
		}
		for _, s := range c.Services {
			if s == serviceID {
				out = append(out, *c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeCounters) Occupied(_ context.Context) ([]models.Counter, error) {
	var out []models.Counter
	for _, c := range f.items {
		if c.CurrentEntry != "" {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCounters) Assign(_ context.Context, counterID, entryID string) error {
	if c := f.find(counterID); c != nil {
		c.Status = models.CounterBusy
		c.CurrentEntry = entryID
	}
	return nil
}

func (f *fakeCounters) Release(_ context.Context, counterID, entryID string) error {
	if c := f.find(counterID); c != nil && c.CurrentEntry == entryID {
		c.Status = models.CounterAvailable
		c.CurrentEntry = ""
	}
	return nil
}

func (f *fakeCounters) SetAvgServiceTime(_ context.Context, counterID string, avg float64) error {
	if c := f.find(counterID); c != nil {
		c.AvgServiceTime = avg
	}
	return nil
}
