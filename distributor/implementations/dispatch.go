package implementations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"logdistributor/config"
	"logdistributor/distributor/interfaces"
	"logdistributor/models"
	"logdistributor/telemetry"
)

// job is a (packet, targetAnalyzer) pair queued for asynchronous
// delivery.
type job struct {
	targetID string
	packet   models.LogPacket
}

// Pipeline implements interfaces.DispatchPipeline: a bounded work queue
// drained by a pool of workers that POST packets to their matched
// analyzer. The pool runs workerMin long-lived workers permanently and
// spins up transient workers (up to workerMax) under queue pressure,
// idling them back out once the backlog clears — the min/max sizing
// spec.md §4.4/§6 names but leaves mechanism-unspecified.
type Pipeline struct {
	registry               interfaces.Registry
	queue                  chan job
	client                 *http.Client
	requestTimeout         time.Duration
	maxConsecutiveFailures int64

	workerMin int
	workerMax int
	active    int64 // atomic: currently running worker goroutines

	counters *Counters
	metrics  *telemetry.Metrics
	logger   *zap.Logger

	wg sync.WaitGroup
}

var _ interfaces.DispatchPipeline = (*Pipeline)(nil)

// transientIdleTimeout is how long an above-minimum worker waits for a
// job before exiting.
const transientIdleTimeout = 2 * time.Second

// NewPipeline builds a dispatch pipeline. The HTTP client is shared
// across every worker and configured for connection reuse, as spec.md
// §4.4 requires.
func NewPipeline(registry interfaces.Registry, cfg *config.Config, counters *Counters, metrics *telemetry.Metrics, logger *zap.Logger) *Pipeline {
	transport := &http.Transport{
		MaxIdleConns:        cfg.WorkerMax * 2,
		MaxIdleConnsPerHost: cfg.WorkerMax,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Pipeline{
		registry:               registry,
		queue:                  make(chan job, cfg.QueueCapacity),
		client:                 &http.Client{Transport: transport, Timeout: cfg.RequestTimeout},
		requestTimeout:         cfg.RequestTimeout,
		maxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		workerMin:              cfg.WorkerMin,
		workerMax:              cfg.WorkerMax,
		counters:               counters,
		metrics:                metrics,
		logger:                 logger,
	}
}

// Start launches the minimum worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.workerMin; i++ {
		p.spawnWorker(ctx, false)
	}
}

// Stop waits for in-flight workers to exit. Anything still sitting in
// the queue when ctx (passed to Start) is canceled is abandoned without
// a POST attempt; each worker drains and counts its share as dropped on
// its way out, so no submitted packet goes unaccounted for.
func (p *Pipeline) Stop() {
	p.wg.Wait()
}

// Enqueue implements interfaces.DispatchPipeline. It applies caller-runs
// backpressure: if the bounded queue is full, the calling goroutine
// performs the send itself rather than blocking indefinitely or
// silently dropping.
func (p *Pipeline) Enqueue(ctx context.Context, targetID string, packet models.LogPacket) interfaces.EnqueueResult {
	select {
	case p.queue <- job{targetID: targetID, packet: packet}:
		p.counters.IncQueued()
		if p.metrics != nil {
			p.metrics.PacketsQueued.Inc()
		}
		p.maybeGrow(ctx)
		return interfaces.EnqueueQueued
	default:
	}

	state := p.registry.ForID(targetID)
	if state == nil {
		p.counters.IncDropped()
		if p.metrics != nil {
			p.metrics.PacketsDropped.Inc()
		}
		return interfaces.EnqueueDropped
	}

	p.deliver(ctx, state, packet)
	return interfaces.EnqueueSent
}

// maybeGrow spins up a transient worker when the queue backlog crosses
// half capacity and the pool has headroom below workerMax.
func (p *Pipeline) maybeGrow(ctx context.Context) {
	if len(p.queue)*2 < cap(p.queue) {
		return
	}
	for {
		current := atomic.LoadInt64(&p.active)
		if current >= int64(p.workerMax) {
			return
		}
		if atomic.CompareAndSwapInt64(&p.active, current, current+1) {
			p.wg.Add(1)
			go p.transientWorkerLoop(ctx)
			return
		}
	}
}

// spawnWorker launches a long-lived (transient=false) or transient
// worker goroutine and tracks it in the wait group and active count.
func (p *Pipeline) spawnWorker(ctx context.Context, transient bool) {
	atomic.AddInt64(&p.active, 1)
	p.wg.Add(1)
	if transient {
		go p.transientWorkerLoop(ctx)
	} else {
		go p.permanentWorkerLoop(ctx)
	}
}

func (p *Pipeline) permanentWorkerLoop(ctx context.Context) {
	defer p.wg.Done()
	defer atomic.AddInt64(&p.active, -1)

	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, j)
		case <-ctx.Done():
			p.drainAbandoned()
			return
		}
	}
}

// drainAbandoned counts every job still sitting in the queue at shutdown
// as dropped, so I1 (every submitted packet is eventually counted) holds
// once the pipeline has quiesced. Safe to call from multiple workers
// concurrently: each buffered job is received by exactly one of them.
func (p *Pipeline) drainAbandoned() {
	for {
		select {
		case <-p.queue:
			p.counters.IncDropped()
			if p.metrics != nil {
				p.metrics.PacketsDropped.Inc()
			}
		default:
			return
		}
	}
}

// transientWorkerLoop is identical to the permanent loop except it exits
// once it has waited transientIdleTimeout without seeing a job, shrinking
// the pool back toward workerMin.
func (p *Pipeline) transientWorkerLoop(ctx context.Context) {
	defer p.wg.Done()
	defer atomic.AddInt64(&p.active, -1)

	idle := time.NewTimer(transientIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			if !idle.Stop() {
				<-idle.C
			}
			p.process(ctx, j)
			idle.Reset(transientIdleTimeout)
		case <-idle.C:
			return
		case <-ctx.Done():
			p.drainAbandoned()
			return
		}
	}
}

func (p *Pipeline) process(ctx context.Context, j job) {
	state := p.registry.ForID(j.targetID)
	if state == nil {
		p.counters.IncDropped()
		if p.metrics != nil {
			p.metrics.PacketsDropped.Inc()
		}
		return
	}
	p.deliver(ctx, state, j.packet)
}

// deliver performs the actual POST and updates counters/health per
// spec.md §4.4 step 3/4. It never retries and never routes to a
// different analyzer on failure.
func (p *Pipeline) deliver(ctx context.Context, state interfaces.AnalyzerState, packet models.LogPacket) {
	body, err := json.Marshal(packet)
	if err != nil {
		p.failDelivery(state, fmt.Errorf("marshal packet: %w", err))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, state.Endpoint(), bytes.NewReader(body))
	if err != nil {
		p.failDelivery(state, fmt.Errorf("build request: %w", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.failDelivery(state, err)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.failDelivery(state, fmt.Errorf("non-2xx response: %d", resp.StatusCode))
		return
	}

	messages := int64(len(packet.Messages))
	state.AddMessages(messages)
	p.counters.AddMessages(messages)
	recovered := state.RecordSuccess()
	p.counters.IncProcessed()

	if recovered && p.logger != nil {
		p.logger.Info("analyzer recovered by successful delivery",
			zap.String("analyzer_id", state.ID()),
		)
	}

	if p.metrics != nil {
		p.metrics.PacketsProcessed.Inc()
		p.metrics.TotalMessagesProcessed.Add(float64(messages))
		p.metrics.SetAnalyzerGauges(state.ID(), state.MessageCount(), true)
	}
}

func (p *Pipeline) failDelivery(state interfaces.AnalyzerState, cause error) {
	state.RecordFailure(p.maxConsecutiveFailures)
	p.counters.IncDropped()

	if p.metrics != nil {
		p.metrics.PacketsDropped.Inc()
		p.metrics.RecordFailure(state.ID())
		p.metrics.SetAnalyzerGauges(state.ID(), state.MessageCount(), state.Online())
	}

	if p.logger != nil {
		p.logger.Warn("delivery failed",
			zap.String("analyzer_id", state.ID()),
			zap.Int64("consecutive_failures", state.ConsecutiveFailures()),
			zap.Bool("online", state.Online()),
			zap.Error(cause),
		)
	}
}
