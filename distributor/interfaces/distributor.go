package interfaces

import (
	"context"

	"logdistributor/models"
)

// Distributor is the top-level service: it wires the registry, selector,
// dispatch pipeline, and recovery sweeper together and exposes the
// lifecycle and ingest surface the HTTP layer needs.
type Distributor interface {
	Start(ctx context.Context) error
	Stop() error

	SubmitPacket(packet models.LogPacket) IngestOutcome
	Stats() models.DistributorStats
}
