package devapi

import (
	"sync"
	"sync/atomic"
)

// Event names one countable outcome of an auth endpoint.
type Event string

const (
	EventLoginSuccess   Event = "auth.login.success"
	EventLoginFailure   Event = "auth.login.failure"
	EventRefreshSuccess Event = "auth.refresh.success"
	EventRefreshFailure Event = "auth.refresh.failure"
	EventLogout         Event = "auth.logout"
	EventProfileRead    Event = "auth.me"
)

// MetricsRecorder counts auth events.
type MetricsRecorder interface {
	Increment(event Event)
}

// CounterMetrics keeps one lock-free counter per event.
type CounterMetrics struct {
	counters sync.Map
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{}
}

func (metrics *CounterMetrics) counter(event Event) *atomic.Int64 {
	if existing, ok := metrics.counters.Load(event); ok {
		return existing.(*atomic.Int64)
	}
	created, _ := metrics.counters.LoadOrStore(event, new(atomic.Int64))
	return created.(*atomic.Int64)
}

func (metrics *CounterMetrics) Increment(event Event) {
	metrics.counter(event).Add(1)
}

// Count returns zero for events never seen.
func (metrics *CounterMetrics) Count(event Event) int64 {
	if existing, ok := metrics.counters.Load(event); ok {
		return existing.(*atomic.Int64).Load()
	}
	return 0
}

// Snapshot copies every counter keyed by event name, for logging.
func (metrics *CounterMetrics) Snapshot() map[string]int64 {
	snapshot := make(map[string]int64)
	metrics.counters.Range(func(key, value any) bool {
		snapshot[string(key.(Event))] = value.(*atomic.Int64).Load()
		return true
	})
	return snapshot
}
