package queue

import (
	"math"
	"os"
	"strconv"
	"time"
)

const (
	maxSamples         = 50
	bufferFactor       = 1.15
	defaultServiceMins = 15
	baseConfidence     = 0.5
	maxConfidence      = 0.95
	fallbackConfidence = 0.3
	maxPriority        = 10
)

// Engine holds the queue core: admission, estimation, counter scoring,
// lifecycle transitions and reconciliation.
type Engine struct {
	services ServiceStore
	samples  SampleStore
	entries  EntryStore
	queues   QueueStore
	counters CounterStore

	defaultCapacity int
	now             func() time.Time
}

func NewEngine(s Stores) *Engine {
	capacity, _ := strconv.Atoi(os.Getenv("QUEUE_DEFAULT_CAPACITY"))
	if capacity < 0 {
		capacity = 0
	}
	return &Engine{
		services:        s.Services,
		samples:         s.Samples,
		entries:         s.Entries,
		queues:          s.Queues,
		counters:        s.Counters,
		defaultCapacity: capacity,
		now:             time.Now,
	}
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}
