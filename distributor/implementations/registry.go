package implementations

import (
	"sync/atomic"
	"time"

	"logdistributor/config"
	"logdistributor/distributor/interfaces"
)

// analyzerState is the atomic-field runtime state for one analyzer. All
// mutation is lock-free: messageCount and consecutiveFailures are atomic
// int64s, online is an atomic bool stored as int32, and lastFailureNanos
// is an atomic int64 Unix-nanosecond timestamp. This follows the
// atomics-only strategy of spec.md §9 — no per-analyzer mutex, no global
// lock; plain atomic loads, stores, adds and one swap suffice.
type analyzerState struct {
	id       string
	endpoint string
	weight   float64

	messageCount        int64
	consecutiveFailures int64
	online              int32 // 1 = true, 0 = false
	lastFailureNanos    int64
}

var _ interfaces.AnalyzerState = (*analyzerState)(nil)

func newAnalyzerState(spec config.AnalyzerSpec) *analyzerState {
	return &analyzerState{
		id:       spec.ID,
		endpoint: spec.Endpoint,
		weight:   spec.Weight,
		online:   1,
	}
}

func (a *analyzerState) ID() string       { return a.id }
func (a *analyzerState) Endpoint() string { return a.endpoint }
func (a *analyzerState) Weight() float64  { return a.weight }

func (a *analyzerState) MessageCount() int64 {
	return atomic.LoadInt64(&a.messageCount)
}

func (a *analyzerState) Online() bool {
	return atomic.LoadInt32(&a.online) == 1
}

func (a *analyzerState) ConsecutiveFailures() int64 {
	return atomic.LoadInt64(&a.consecutiveFailures)
}

func (a *analyzerState) LastFailureTime() time.Time {
	nanos := atomic.LoadInt64(&a.lastFailureNanos)
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (a *analyzerState) AddMessages(n int64) {
	atomic.AddInt64(&a.messageCount, n)
}

// RecordSuccess resets the failure counter and promotes Offline ->
// Online. Returns true if it performed that promotion, so the caller can
// emit a single recovery log line. A concurrent success and a concurrent
// Sweep are idempotent: both simply set online to 1 and failures to 0.
func (a *analyzerState) RecordSuccess() bool {
	atomic.StoreInt64(&a.consecutiveFailures, 0)
	wasOffline := atomic.SwapInt32(&a.online, 1) == 0
	return wasOffline
}

// RecordFailure increments the failure counter and, once it reaches the
// threshold, transitions the analyzer to Offline.
func (a *analyzerState) RecordFailure(maxConsecutiveFailures int64) {
	atomic.StoreInt64(&a.lastFailureNanos, time.Now().UnixNano())
	failures := atomic.AddInt64(&a.consecutiveFailures, 1)
	if failures >= maxConsecutiveFailures {
		atomic.StoreInt32(&a.online, 0)
	}
}

// Sweep promotes the analyzer back Online if it has been Offline for
// longer than offlineTimeout. Returns true if it performed a promotion,
// so the caller can emit a single recovery log line.
func (a *analyzerState) Sweep(offlineTimeout time.Duration) bool {
	if a.Online() {
		return false
	}
	lastFailure := a.LastFailureTime()
	if lastFailure.IsZero() || time.Since(lastFailure) <= offlineTimeout {
		return false
	}
	atomic.StoreInt32(&a.online, 1)
	atomic.StoreInt64(&a.consecutiveFailures, 0)
	return true
}

func (a *analyzerState) Snapshot() interfaces.AnalyzerSnapshot {
	return interfaces.AnalyzerSnapshot{
		ID:                  a.id,
		Endpoint:            a.endpoint,
		Weight:              a.weight,
		MessageCount:        a.MessageCount(),
		Online:              a.Online(),
		ConsecutiveFailures: a.ConsecutiveFailures(),
		LastFailureTime:     a.LastFailureTime(),
	}
}

// Registry is a fixed-membership table of analyzers built once at
// startup. Reads require no locking: the backing slice and map are never
// mutated after NewRegistry returns.
type Registry struct {
	order []*analyzerState
	byID  map[string]*analyzerState
}

var _ interfaces.Registry = (*Registry)(nil)

// NewRegistry builds a registry from the configured analyzer specs,
// preserving their order for the Selector's tie-break.
func NewRegistry(specs []config.AnalyzerSpec) *Registry {
	r := &Registry{
		order: make([]*analyzerState, 0, len(specs)),
		byID:  make(map[string]*analyzerState, len(specs)),
	}
	for _, spec := range specs {
		state := newAnalyzerState(spec)
		r.order = append(r.order, state)
		r.byID[spec.ID] = state
	}
	return r
}

func (r *Registry) Snapshot() []interfaces.AnalyzerSnapshot {
	out := make([]interfaces.AnalyzerSnapshot, len(r.order))
	for i, a := range r.order {
		out[i] = a.Snapshot()
	}
	return out
}

func (r *Registry) ForID(id string) interfaces.AnalyzerState {
	a, ok := r.byID[id]
	if !ok {
		return nil
	}
	return a
}

func (r *Registry) Len() int {
	return len(r.order)
}
