package tests

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"logdistributor/config"
	"logdistributor/distributor/implementations"
	"logdistributor/models"
	"logdistributor/telemetry"
)

// countingAnalyzer is a fake analyzer HTTP server that counts delivered
// messages (decoded from the packet body, so variable-size packets tally
// correctly) and can be toggled to reject every request.
type countingAnalyzer struct {
	srv      *httptest.Server
	messages int64
	reject   int32
}

func newCountingAnalyzer(t *testing.T) *countingAnalyzer {
	t.Helper()
	ca := &countingAnalyzer{}
	ca.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if atomic.LoadInt32(&ca.reject) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var packet models.LogPacket
		if err := json.NewDecoder(r.Body).Decode(&packet); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		atomic.AddInt64(&ca.messages, int64(len(packet.Messages)))
		w.WriteHeader(http.StatusOK)
	}))
	return ca
}

func (c *countingAnalyzer) setReject(v bool) {
	if v {
		atomic.StoreInt32(&c.reject, 1)
	} else {
		atomic.StoreInt32(&c.reject, 0)
	}
}

func (c *countingAnalyzer) close() { c.srv.Close() }

func buildDistributor(t *testing.T, analyzers []config.AnalyzerSpec, overrides func(*config.Config)) *implementations.Distributor {
	t.Helper()
	cfg := &config.Config{
		Analyzers:              analyzers,
		MaxConsecutiveFailures: 3,
		OfflineTimeout:         80 * time.Millisecond,
		DeficitThreshold:       1000,
		QueueCapacity:          10000,
		WorkerMin:              8,
		WorkerMax:              32,
		RequestTimeout:         2 * time.Second,
		SweepInterval:          20 * time.Millisecond,
	}
	if overrides != nil {
		overrides(cfg)
	}
	return implementations.New(cfg, telemetry.New(), zap.NewNop())
}

func singleMessage() []models.LogMessage {
	return []models.LogMessage{{Level: "info", Message: "x"}}
}

// Scenario 1 (spec.md §8): warm-up distribution across four weighted
// analyzers with single-message packets.
func TestScenario_WarmUpDistribution(t *testing.T) {
	weights := []float64{0.1, 0.2, 0.3, 0.4}
	analyzers := make([]*countingAnalyzer, len(weights))
	specs := make([]config.AnalyzerSpec, len(weights))
	for i, w := range weights {
		analyzers[i] = newCountingAnalyzer(t)
		specs[i] = config.AnalyzerSpec{ID: string(rune('A' + i)), Endpoint: analyzers[i].srv.URL, Weight: w}
	}
	defer func() {
		for _, a := range analyzers {
			a.close()
		}
	}()

	dist := buildDistributor(t, specs, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dist.Start(ctx))
	defer dist.Stop()

	const n = 10000
	for i := 0; i < n; i++ {
		dist.SubmitPacket(models.NewLogPacket("agent-1", singleMessage()))
	}

	require.Eventually(t, func() bool {
		return dist.Stats().TotalMessagesProcessed >= n-50
	}, 5*time.Second, 20*time.Millisecond)

	for i, a := range analyzers {
		got := float64(atomic.LoadInt64(&a.messages))
		want := weights[i] * n
		assert.InDelta(t, want, got, want*0.05+20, "analyzer %d final count drifted beyond tolerance", i)
	}
}

// Scenario 2 (spec.md §8): variable packet size. Same four weighted
// analyzers as scenario 1, but each packet carries a uniformly
// distributed 1-20 messages; the weighted ratio must hold over total
// message count, not packet count.
func TestScenario_VariablePacketSize(t *testing.T) {
	weights := []float64{0.1, 0.2, 0.3, 0.4}
	analyzers := make([]*countingAnalyzer, len(weights))
	specs := make([]config.AnalyzerSpec, len(weights))
	for i, w := range weights {
		analyzers[i] = newCountingAnalyzer(t)
		specs[i] = config.AnalyzerSpec{ID: string(rune('A' + i)), Endpoint: analyzers[i].srv.URL, Weight: w}
	}
	defer func() {
		for _, a := range analyzers {
			a.close()
		}
	}()

	dist := buildDistributor(t, specs, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dist.Start(ctx))
	defer dist.Stop()

	rng := rand.New(rand.NewSource(1))
	const n = 10000
	var totalMessages int64
	for i := 0; i < n; i++ {
		size := rng.Intn(20) + 1 // uniform 1-20
		messages := make([]models.LogMessage, size)
		for j := range messages {
			messages[j] = models.LogMessage{Level: "info", Message: "x"}
		}
		totalMessages += int64(size)
		dist.SubmitPacket(models.NewLogPacket("agent-1", messages))
	}

	require.Eventually(t, func() bool {
		return dist.Stats().TotalMessagesProcessed >= totalMessages-100
	}, 10*time.Second, 20*time.Millisecond)

	for i, a := range analyzers {
		got := float64(atomic.LoadInt64(&a.messages))
		want := weights[i] * float64(totalMessages)
		assert.InDelta(t, want, got, want*0.05+20, "analyzer %d message-count ratio drifted beyond tolerance", i)
	}
}

// Scenario 3/4 (spec.md §8): failover to Offline and recovery with
// deficit-driven catch-up.
func TestScenario_FailoverAndRecovery(t *testing.T) {
	a := newCountingAnalyzer(t)
	b := newCountingAnalyzer(t)
	c := newCountingAnalyzer(t)
	d := newCountingAnalyzer(t)
	defer a.close()
	defer b.close()
	defer c.close()
	defer d.close()

	specs := []config.AnalyzerSpec{
		{ID: "a", Endpoint: a.srv.URL, Weight: 0.1},
		{ID: "b", Endpoint: b.srv.URL, Weight: 0.2},
		{ID: "c", Endpoint: c.srv.URL, Weight: 0.3},
		{ID: "d", Endpoint: d.srv.URL, Weight: 0.4},
	}

	dist := buildDistributor(t, specs, func(cfg *config.Config) {
		cfg.MaxConsecutiveFailures = 3
		cfg.OfflineTimeout = 60 * time.Millisecond
		cfg.SweepInterval = 15 * time.Millisecond
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dist.Start(ctx))
	defer dist.Stop()

	send := func(n int) {
		for i := 0; i < n; i++ {
			dist.SubmitPacket(models.NewLogPacket("agent-1", singleMessage()))
		}
	}

	send(2000)
	require.Eventually(t, func() bool { return dist.Stats().TotalMessagesProcessed >= 1900 }, 5*time.Second, 10*time.Millisecond)

	d.setReject(true)

	// Drive enough traffic that D is attempted and fails MAX_CONSECUTIVE_FAILURES times.
	send(200)

	dID := mustRegistryState(t, dist, "d")
	require.Eventually(t, func() bool { return !dID.Online() }, 2*time.Second, 10*time.Millisecond)

	// While D is offline, traffic should distribute across A, B, C in 1:2:3.
	beforeA, beforeB, beforeC := atomic.LoadInt64(&a.messages), atomic.LoadInt64(&b.messages), atomic.LoadInt64(&c.messages)
	send(3000)
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&a.messages)+atomic.LoadInt64(&b.messages)+atomic.LoadInt64(&c.messages) > beforeA+beforeB+beforeC+2500
	}, 5*time.Second, 10*time.Millisecond)

	deltaA := float64(atomic.LoadInt64(&a.messages) - beforeA)
	deltaB := float64(atomic.LoadInt64(&b.messages) - beforeB)
	deltaC := float64(atomic.LoadInt64(&c.messages) - beforeC)
	total := deltaA + deltaB + deltaC
	assert.InDelta(t, 1.0/6.0, deltaA/total, 0.05)
	assert.InDelta(t, 2.0/6.0, deltaB/total, 0.05)
	assert.InDelta(t, 3.0/6.0, deltaC/total, 0.05)

	// Recovery: un-reject D, wait past the cooldown, confirm it is
	// preferentially selected to catch up its deficit.
	d.setReject(false)
	require.Eventually(t, func() bool { return dID.Online() }, 2*time.Second, 10*time.Millisecond)

	beforeD := atomic.LoadInt64(&d.messages)
	send(2000)
	require.Eventually(t, func() bool { return atomic.LoadInt64(&d.messages) > beforeD }, 3*time.Second, 10*time.Millisecond)
}

// Scenario 6 / B2 (spec.md §8): every analyzer unreachable drops every
// packet without corrupting counters. Delivery after the endpoints come
// back is not exercised here.
func TestScenario_AllAnalyzersUnreachable(t *testing.T) {
	specs := []config.AnalyzerSpec{
		{ID: "a", Endpoint: "http://127.0.0.1:1/unreachable", Weight: 0.5},
		{ID: "b", Endpoint: "http://127.0.0.1:2/unreachable", Weight: 0.5},
	}

	dist := buildDistributor(t, specs, func(cfg *config.Config) {
		cfg.MaxConsecutiveFailures = 2
		cfg.RequestTimeout = 200 * time.Millisecond
		cfg.OfflineTimeout = 40 * time.Millisecond
		cfg.SweepInterval = 10 * time.Millisecond
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dist.Start(ctx))
	defer dist.Stop()

	const n = 100
	for i := 0; i < n; i++ {
		dist.SubmitPacket(models.NewLogPacket("agent-1", singleMessage()))
	}

	require.Eventually(t, func() bool {
		stats := dist.Stats()
		return stats.PacketsReceived == n && stats.PacketsDropped == n
	}, 5*time.Second, 10*time.Millisecond)

	stats := dist.Stats()
	assert.Equal(t, int64(n), stats.PacketsReceived)
	assert.Equal(t, int64(n), stats.PacketsDropped)
	assert.Equal(t, int64(0), stats.TotalMessagesProcessed)
}

// B1: an empty registry drops every packet.
func TestScenario_EmptyRegistryDropsEverything(t *testing.T) {
	dist := buildDistributor(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dist.Start(ctx))
	defer dist.Stop()

	for i := 0; i < 10; i++ {
		dist.SubmitPacket(models.NewLogPacket("agent-1", singleMessage()))
	}

	stats := dist.Stats()
	assert.Equal(t, int64(10), stats.PacketsReceived)
	assert.Equal(t, int64(10), stats.PacketsDropped)
}

// B3: a single analyzer with weight 1.0 receives everything.
func TestScenario_SingleAnalyzerReceivesEverything(t *testing.T) {
	a := newCountingAnalyzer(t)
	defer a.close()

	dist := buildDistributor(t, []config.AnalyzerSpec{{ID: "only", Endpoint: a.srv.URL, Weight: 1.0}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dist.Start(ctx))
	defer dist.Stop()

	const n = 500
	for i := 0; i < n; i++ {
		dist.SubmitPacket(models.NewLogPacket("agent-1", singleMessage()))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&a.messages) == n
	}, 5*time.Second, 10*time.Millisecond)
}

func mustRegistryState(t *testing.T, dist *implementations.Distributor, id string) analyzerStateLike {
	t.Helper()
	for _, stat := range dist.Stats().Analyzers {
		if stat.ID == id {
			return registrySnapshotState{dist: dist, id: id}
		}
	}
	t.Fatalf("analyzer %s not found in registry", id)
	return nil
}

// analyzerStateLike avoids exporting the internal registry type from the
// implementations package into the test helper's return type.
type analyzerStateLike interface {
	Online() bool
}

type registrySnapshotState struct {
	dist *implementations.Distributor
	id   string
}

func (r registrySnapshotState) Online() bool {
	for _, stat := range r.dist.Stats().Analyzers {
		if stat.ID == r.id {
			return stat.Online
		}
	}
	return false
}
