// Package telemetry exposes the distributor's lifetime counters over a
// Prometheus registry, following the metrics-provider pattern used
// elsewhere in this codebase's sibling services (a small set of
// CounterVec/GaugeVec instruments registered once at construction,
// scraped via promhttp).
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the distributor's process-wide Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	PacketsReceived  prometheus.Counter
	PacketsQueued    prometheus.Counter
	PacketsProcessed prometheus.Counter
	PacketsDropped   prometheus.Counter

	TotalMessagesProcessed prometheus.Counter

	AnalyzerMessageCount *prometheus.GaugeVec
	AnalyzerOnline       *prometheus.GaugeVec
	AnalyzerFailures     *prometheus.CounterVec
}

// New builds a Metrics instance backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distributor_packets_received_total",
			Help: "Lifetime count of packets accepted by the ingest boundary.",
		}),
		PacketsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distributor_packets_queued_total",
			Help: "Lifetime count of packets accepted into the dispatch queue.",
		}),
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distributor_packets_processed_total",
			Help: "Lifetime count of packets successfully delivered to an analyzer.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distributor_packets_dropped_total",
			Help: "Lifetime count of packets dropped: no target, send failure, or abandoned at shutdown.",
		}),
		TotalMessagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distributor_messages_processed_total",
			Help: "Lifetime sum of messages successfully delivered across all analyzers.",
		}),
		AnalyzerMessageCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "distributor_analyzer_message_count",
			Help: "Messages successfully delivered to this analyzer.",
		}, []string{"analyzer_id"}),
		AnalyzerOnline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "distributor_analyzer_online",
			Help: "1 if the analyzer is currently Online, 0 if Offline.",
		}, []string{"analyzer_id"}),
		AnalyzerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "distributor_analyzer_failures_total",
			Help: "Lifetime count of failed delivery attempts per analyzer.",
		}, []string{"analyzer_id"}),
	}

	reg.MustRegister(
		m.PacketsReceived,
		m.PacketsQueued,
		m.PacketsProcessed,
		m.PacketsDropped,
		m.TotalMessagesProcessed,
		m.AnalyzerMessageCount,
		m.AnalyzerOnline,
		m.AnalyzerFailures,
	)

	return m
}

// Handler returns the HTTP handler for the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFailure increments the per-analyzer failure counter.
func (m *Metrics) RecordFailure(analyzerID string) {
	m.AnalyzerFailures.WithLabelValues(analyzerID).Inc()
}

// SetAnalyzerGauges reflects the current message count and health of one
// analyzer into the gauge instruments. Called from the sweeper and from
// dispatch outcomes; tolerant of being slightly stale between calls.
func (m *Metrics) SetAnalyzerGauges(analyzerID string, messageCount int64, online bool) {
	m.AnalyzerMessageCount.WithLabelValues(analyzerID).Set(float64(messageCount))
	onlineValue := 0.0
	if online {
		onlineValue = 1.0
	}
	m.AnalyzerOnline.WithLabelValues(analyzerID).Set(onlineValue)
}
