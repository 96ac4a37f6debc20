package interfaces

import "logdistributor/models"

// IngestOutcome is the adapter's accepted/rejected indicator. It is
// returned without waiting for delivery, except when a full queue makes
// the pipeline send the packet on the caller's goroutine (caller-runs).
type IngestOutcome int

const (
	IngestAccepted IngestOutcome = iota
	IngestRejected
)

// IngestAdapter is the boundary between the wire protocol and the
// routing engine: it accounts for the packet, asks the Selector for a
// target, and enqueues into the DispatchPipeline.
type IngestAdapter interface {
	Submit(packet models.LogPacket) IngestOutcome
}
