package interfaces

import "time"

// AnalyzerSnapshot is a point-in-time, field-atomic read of one analyzer's
// state. Individual fields are each read atomically but the snapshot as a
// whole is not a consistent transaction across analyzers — callers must
// tolerate the mild staleness spec.md §5 describes.
type AnalyzerSnapshot struct {
	ID                  string
	Endpoint            string
	Weight              float64
	MessageCount        int64
	Online              bool
	ConsecutiveFailures int64
	LastFailureTime     time.Time
}

// Registry enumerates the fixed set of analyzers configured at startup
// and exposes their runtime state. Membership never changes after
// construction.
type Registry interface {
	// Snapshot returns a read of every analyzer in stable registration
	// order. Order is what the Selector's tie-break relies on.
	Snapshot() []AnalyzerSnapshot

	// ForID returns the mutable state handle for an analyzer, or nil if
	// no analyzer with that id is registered.
	ForID(id string) AnalyzerState

	// Len reports the number of registered analyzers.
	Len() int
}

// AnalyzerState is the mutable, concurrency-safe runtime state of one
// analyzer. All methods are safe for concurrent use by the selector
// (reads), the dispatch workers (success/failure), and the recovery
// sweeper (sweep).
type AnalyzerState interface {
	ID() string
	Endpoint() string
	Weight() float64

	MessageCount() int64
	Online() bool
	ConsecutiveFailures() int64
	LastFailureTime() time.Time

	// AddMessages atomically increments the delivered-message counter.
	// Called only after a successful POST.
	AddMessages(n int64)

	// RecordSuccess resets the failure counter and, if the analyzer was
	// Offline, promotes it back to Online (idempotent with Sweep).
	// Returns true if it performed that promotion.
	RecordSuccess() bool

	// RecordFailure increments the failure counter, stamps the failure
	// time, and transitions to Offline once the threshold is reached.
	RecordFailure(maxConsecutiveFailures int64)

	// Sweep promotes the analyzer to Online if it has been Offline for
	// longer than offlineTimeout. No-op if already Online.
	Sweep(offlineTimeout time.Duration) bool

	Snapshot() AnalyzerSnapshot
}
