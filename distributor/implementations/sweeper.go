package implementations

import (
	"context"
	"time"

	"go.uber.org/zap"

	"logdistributor/distributor/interfaces"
	"logdistributor/telemetry"
)

// Sweeper implements interfaces.RecoverySweeper: a periodic tick that
// promotes Offline analyzers whose cooldown has elapsed back to Online.
type Sweeper struct {
	registry interfaces.Registry
	interval time.Duration
	timeout  time.Duration
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

var _ interfaces.RecoverySweeper = (*Sweeper)(nil)

// NewSweeper builds a sweeper over the given registry.
func NewSweeper(registry interfaces.Registry, interval, offlineTimeout time.Duration, metrics *telemetry.Metrics, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		registry: registry,
		interval: interval,
		timeout:  offlineTimeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run blocks, ticking at s.interval, until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep() {
	for _, a := range s.registry.Snapshot() {
		state := s.registry.ForID(a.ID)
		if state == nil {
			continue
		}
		if state.Sweep(s.timeout) {
			s.logger.Info("analyzer recovered by sweeper",
				zap.String("analyzer_id", a.ID),
				zap.Duration("offline_for", time.Since(a.LastFailureTime)),
			)
			if s.metrics != nil {
				s.metrics.SetAnalyzerGauges(a.ID, state.MessageCount(), true)
			}
		}
	}
}
