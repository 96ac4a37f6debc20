package implementations

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"logdistributor/config"
	"logdistributor/distributor/interfaces"
	"logdistributor/models"
	"logdistributor/telemetry"
)

// Adapter implements interfaces.IngestAdapter: the boundary that
// accounts for an incoming packet, asks the Selector for a target, and
// enqueues into the DispatchPipeline. It does not wait for delivery while
// the queue has room; when the queue is full, the pipeline's caller-runs
// backpressure makes Submit perform the send itself.
type Adapter struct {
	registry interfaces.Registry
	selector interfaces.Selector
	pipeline interfaces.DispatchPipeline
	counters *Counters
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	ctx      context.Context
}

var _ interfaces.IngestAdapter = (*Adapter)(nil)

// NewAdapter builds the ingest boundary over the given components.
func NewAdapter(ctx context.Context, registry interfaces.Registry, selector interfaces.Selector, pipeline interfaces.DispatchPipeline, counters *Counters, metrics *telemetry.Metrics, logger *zap.Logger) *Adapter {
	return &Adapter{
		registry: registry,
		selector: selector,
		pipeline: pipeline,
		counters: counters,
		metrics:  metrics,
		logger:   logger,
		ctx:      ctx,
	}
}

// ValidatePacket rejects packets that violate the minimal shape the core
// requires: a non-empty message list within the configured size bound.
func ValidatePacket(packet models.LogPacket) error {
	if len(packet.Messages) == 0 {
		return fmt.Errorf("packet must contain at least one message")
	}
	if len(packet.Messages) > config.MaxMessagesPerPacket {
		return fmt.Errorf("packet contains %d messages, maximum allowed is %d", len(packet.Messages), config.MaxMessagesPerPacket)
	}
	for _, msg := range packet.Messages {
		if len(msg.Message) > config.MaxLogMessageLength {
			return fmt.Errorf("message length %d exceeds maximum %d", len(msg.Message), config.MaxLogMessageLength)
		}
	}
	return nil
}

// Submit implements interfaces.IngestAdapter.
func (a *Adapter) Submit(packet models.LogPacket) interfaces.IngestOutcome {
	a.counters.IncReceived()
	if a.metrics != nil {
		a.metrics.PacketsReceived.Inc()
	}

	totalMessages := a.counters.TotalMessages()
	target := a.selector.Select(a.registry, totalMessages, len(packet.Messages))
	if target == interfaces.NoTarget {
		a.counters.IncDropped()
		if a.metrics != nil {
			a.metrics.PacketsDropped.Inc()
		}
		if a.logger != nil {
			a.logger.Warn("no online analyzer available, dropping packet", zap.String("packet_id", packet.PacketID))
		}
		return interfaces.IngestRejected
	}

	switch a.pipeline.Enqueue(a.ctx, target, packet) {
	case interfaces.EnqueueQueued, interfaces.EnqueueSent:
		return interfaces.IngestAccepted
	default:
		return interfaces.IngestRejected
	}
}
