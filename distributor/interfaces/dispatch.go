package interfaces

import (
	"context"

	"logdistributor/models"
)

// EnqueueResult reports what the dispatch pipeline did with a submitted
// packet, so the ingest boundary can keep its counters honest.
type EnqueueResult int

const (
	// EnqueueQueued means the packet was accepted into the bounded work
	// queue for asynchronous delivery.
	EnqueueQueued EnqueueResult = iota
	// EnqueueSent means the queue was full and the packet was sent
	// synchronously by the calling goroutine (caller-runs backpressure).
	EnqueueSent
	// EnqueueDropped means the packet could not be queued or sent and
	// was dropped; the pipeline has already counted it in packetsDropped.
	EnqueueDropped
)

// DispatchPipeline carries (packet, targetAnalyzer) pairs to a delivery
// attempt without blocking the ingest path beyond a bounded enqueue.
type DispatchPipeline interface {
	// Enqueue accepts a packet already matched to a target analyzer id.
	// It applies caller-runs backpressure when the queue is full: the
	// calling goroutine performs the POST itself rather than dropping.
	Enqueue(ctx context.Context, targetID string, packet models.LogPacket) EnqueueResult

	// Start launches the worker pool. Safe to call once.
	Start(ctx context.Context)

	// Stop waits for the worker pool to exit after the context passed to
	// Start is canceled. Packets still queued at that point are abandoned
	// and counted as dropped. Stop does not close the queue and does not
	// reject later Enqueue calls; a packet queued after Stop is not
	// delivered.
	Stop()
}
