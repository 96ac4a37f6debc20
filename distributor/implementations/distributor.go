package implementations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"logdistributor/config"
	"logdistributor/distributor/interfaces"
	"logdistributor/models"
	"logdistributor/telemetry"
)

// Distributor wires the registry, selector, dispatch pipeline, and
// recovery sweeper together behind the interfaces.Distributor contract,
// the way the teacher's top-level Distributor composes its injected
// components.
type Distributor struct {
	registry *Registry
	selector interfaces.Selector
	pipeline *Pipeline
	sweeper  interfaces.RecoverySweeper
	counters *Counters
	metrics  *telemetry.Metrics
	logger   *zap.Logger

	adapter interfaces.IngestAdapter

	mu        sync.Mutex
	running   bool
	startTime time.Time
	cancel    context.CancelFunc
}

var _ interfaces.Distributor = (*Distributor)(nil)

// New constructs a fully wired Distributor from configuration.
func New(cfg *config.Config, metrics *telemetry.Metrics, logger *zap.Logger) *Distributor {
	registry := NewRegistry(cfg.Analyzers)
	counters := &Counters{}
	selector := NewWeightedSelector(cfg)
	pipeline := NewPipeline(registry, cfg, counters, metrics, logger)
	sweeper := NewSweeper(registry, cfg.SweepInterval, cfg.OfflineTimeout, metrics, logger)

	return &Distributor{
		registry: registry,
		selector: selector,
		pipeline: pipeline,
		sweeper:  sweeper,
		counters: counters,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start launches the dispatch pool and recovery sweeper and builds the
// ingest adapter bound to this run's cancellation context.
func (d *Distributor) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("distributor is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.startTime = time.Now()

	d.pipeline.Start(runCtx)
	go d.sweeper.Run(runCtx)

	d.adapter = NewAdapter(runCtx, d.registry, d.selector, d.pipeline, d.counters, d.metrics, d.logger)
	d.running = true

	return nil
}

// Stop cancels the run context and waits for dispatch workers to drain.
func (d *Distributor) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("distributor is not running")
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.pipeline.Stop()
	return nil
}

// SubmitPacket implements interfaces.Distributor by delegating to the
// ingest adapter.
func (d *Distributor) SubmitPacket(packet models.LogPacket) interfaces.IngestOutcome {
	d.mu.Lock()
	adapter := d.adapter
	d.mu.Unlock()

	if adapter == nil {
		return interfaces.IngestRejected
	}
	return adapter.Submit(packet)
}

// Stats builds a DistributorStats read model from the live counters and
// registry without taking any lock on the hot path.
func (d *Distributor) Stats() models.DistributorStats {
	d.mu.Lock()
	uptime := time.Duration(0)
	if !d.startTime.IsZero() {
		uptime = time.Since(d.startTime)
	}
	d.mu.Unlock()

	snapshot := d.registry.Snapshot()
	analyzerStats := make([]models.AnalyzerStat, len(snapshot))
	active := 0
	for i, a := range snapshot {
		analyzerStats[i] = models.AnalyzerStat{
			ID:                  a.ID,
			Endpoint:            a.Endpoint,
			Weight:              a.Weight,
			MessageCount:        a.MessageCount,
			Online:              a.Online,
			ConsecutiveFailures: a.ConsecutiveFailures,
			LastFailureTime:     a.LastFailureTime,
		}
		if a.Online {
			active++
		}
	}

	return models.DistributorStats{
		PacketsReceived:        d.counters.Received(),
		PacketsQueued:          d.counters.Queued(),
		PacketsProcessed:       d.counters.Processed(),
		PacketsDropped:         d.counters.Dropped(),
		TotalMessagesProcessed: d.counters.TotalMessages(),
		ActiveAnalyzers:        active,
		Analyzers:              analyzerStats,
		Uptime:                 uptime,
	}
}
