package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_NoHistoryUsesNominalDuration(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	e := newTestEngine(f)

	est := e.Estimate(context.Background(), "svc1", 3)

	// 30 min nominal, 15% buffer -> 35 per person, 3 ahead.
	assert.Equal(t, 105, est.EstimatedWaitMinutes)
	assert.Equal(t, 4, est.QueuePosition)
	assert.Equal(t, 30, est.AvgServiceMinutes)
	assert.InDelta(t, 0.5, est.Confidence, 1e-9)
	assert.False(t, est.Degraded)
}

func TestEstimate_AveragesRecentHistory(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	for _, mins := range []int{10, 20, 30} {
		f.samples.samples = append(f.samples.samples, makeSamples(1, mins)...)
	}
	e := newTestEngine(f)

	est := e.Estimate(context.Background(), "svc1", 2)

	// Observed average 20 beats the nominal 30; buffered to 23.
	assert.Equal(t, 20, est.AvgServiceMinutes)
	assert.Equal(t, 46, est.EstimatedWaitMinutes)
	assert.Equal(t, 3, est.QueuePosition)
	assert.InDelta(t, 0.53, est.Confidence, 1e-9)
	assert.False(t, est.Degraded)
}

func TestEstimate_ConfidenceCapsAtMax(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.samples.samples = makeSamples(60, 30)
	e := newTestEngine(f)

	est := e.Estimate(context.Background(), "svc1", 1)

	// Only the 50 most recent samples count, and confidence saturates.
	assert.InDelta(t, 0.95, est.Confidence, 1e-9)
}

func TestEstimate_WaitGrowsWithQueueSize(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 20)
	f.samples.samples = makeSamples(10, 20)
	e := newTestEngine(f)

	prev := -1
	for _, size := range []int{0, 1, 2, 5, 20} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			est := e.Estimate(context.Background(), "svc1", size)
			assert.Equal(t, size+1, est.QueuePosition)
			assert.GreaterOrEqual(t, est.EstimatedWaitMinutes, prev)
			prev = est.EstimatedWaitMinutes
		})
	}
}

func TestEstimate_EmptyQueueMeansNoWait(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 45)
	e := newTestEngine(f)

	est := e.Estimate(context.Background(), "svc1", 0)

	assert.Equal(t, 0, est.EstimatedWaitMinutes)
	assert.Equal(t, 1, est.QueuePosition)
}

func TestEstimate_UnknownServiceFallsBack(t *testing.T) {
	f := newFakes()
	e := newTestEngine(f)

	est := e.Estimate(context.Background(), "ghost", 4)

	// Flat 15 minutes per person, low confidence, flagged degraded.
	assert.Equal(t, 60, est.EstimatedWaitMinutes)
	assert.Equal(t, 5, est.QueuePosition)
	assert.Equal(t, 15, est.AvgServiceMinutes)
	assert.InDelta(t, 0.3, est.Confidence, 1e-9)
	assert.True(t, est.Degraded)
}

func TestEstimate_HistoryErrorFallsBackToNominal(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	f.samples.err = errors.New("cursor timeout")
	e := newTestEngine(f)

	est := e.Estimate(context.Background(), "svc1", 2)

	// Nominal duration still gets the buffer; confidence drops to the
	// fallback.
	assert.Equal(t, 70, est.EstimatedWaitMinutes)
	assert.Equal(t, 30, est.AvgServiceMinutes)
	assert.InDelta(t, 0.3, est.Confidence, 1e-9)
	assert.True(t, est.Degraded)
}

func TestEstimate_NegativeQueueSizeClamped(t *testing.T) {
	f := newFakes()
	f.services.items["svc1"] = testService("svc1", 30)
	e := newTestEngine(f)

	est := e.Estimate(context.Background(), "svc1", -3)

	assert.Equal(t, 0, est.EstimatedWaitMinutes)
	assert.Equal(t, 1, est.QueuePosition)
}

func TestEstimate_ConfidenceStaysInBounds(t *testing.T) {
	for _, count := range []int{0, 1, 10, 25, 45, 50} {
		f := newFakes()
		f.services.items["svc1"] = testService("svc1", 30)
		f.samples.samples = makeSamples(count, 30)
		e := newTestEngine(f)

		est := e.Estimate(context.Background(), "svc1", 1)

		assert.GreaterOrEqual(t, est.Confidence, 0.3, "count=%d", count)
		assert.LessOrEqual(t, est.Confidence, 0.95, "count=%d", count)
	}
}
