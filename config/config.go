// Package config loads the distributor's environment-driven configuration
// surface: the analyzer table and the routing/dispatch tunables, using
// viper's environment binding the way the capture-agent config package in
// this codebase's sibling services does.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server and HTTP defaults. These are not part of the env-driven tunable
// table in spec.md §6; they configure the boundary HTTP server only.
const (
	DefaultPort     = "8080"
	ReadTimeout     = 30 * time.Second
	WriteTimeout    = 30 * time.Second
	IdleTimeout     = 120 * time.Second
	ShutdownTimeout = 30 * time.Second
)

// Ingest validation limits, not tunable via ANALYZERS_CONFIG.
const (
	MaxMessagesPerPacket = 10000
	MaxLogMessageLength  = 10000
)

// AnalyzerSpec is one immutable analyzer descriptor parsed from
// ANALYZERS_CONFIG: id, POST endpoint, and routing weight.
type AnalyzerSpec struct {
	ID       string
	Endpoint string
	Weight   float64
}

// Config is the fully validated, immutable configuration for one
// distributor process.
type Config struct {
	Analyzers []AnalyzerSpec

	MaxConsecutiveFailures int64
	OfflineTimeout         time.Duration
	DeficitThreshold       float64
	QueueCapacity          int
	WorkerMin              int
	WorkerMax              int
	RequestTimeout         time.Duration
	SweepInterval          time.Duration

	Port string
}

// defaultAnalyzers mirrors spec.md §6: "Absent or empty: a default
// four-analyzer configuration with weights 0.1, 0.2, 0.3, 0.4."
func defaultAnalyzers() []AnalyzerSpec {
	return []AnalyzerSpec{
		{ID: "analyzer-1", Endpoint: "http://localhost:9101/ingest", Weight: 0.1},
		{ID: "analyzer-2", Endpoint: "http://localhost:9102/ingest", Weight: 0.2},
		{ID: "analyzer-3", Endpoint: "http://localhost:9103/ingest", Weight: 0.3},
		{ID: "analyzer-4", Endpoint: "http://localhost:9104/ingest", Weight: 0.4},
	}
}

// Load reads the distributor configuration from the process environment.
// It returns an error (never panics or exits) on any malformed
// ANALYZERS_CONFIG record; the caller is expected to treat that as a
// fatal startup condition per spec.md §7 item 1.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for key, def := range map[string]interface{}{
		"ANALYZERS_CONFIG":         "",
		"MAX_CONSECUTIVE_FAILURES": 3,
		"OFFLINE_TIMEOUT":          "30s",
		"DEFICIT_THRESHOLD":        1000,
		"QUEUE_CAPACITY":           10000,
		"WORKER_MIN":               20,
		"WORKER_MAX":               50,
		"REQUEST_TIMEOUT":          "30s",
		"SWEEP_INTERVAL":           "5s",
		"PORT":                     DefaultPort,
	} {
		v.SetDefault(key, def)
		_ = v.BindEnv(key)
	}

	analyzers, err := parseAnalyzersConfig(v.GetString("ANALYZERS_CONFIG"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYZERS_CONFIG: %w", err)
	}

	offlineTimeout, err := time.ParseDuration(v.GetString("OFFLINE_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid OFFLINE_TIMEOUT: %w", err)
	}
	requestTimeout, err := time.ParseDuration(v.GetString("REQUEST_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	sweepInterval, err := time.ParseDuration(v.GetString("SWEEP_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	workerMin := v.GetInt("WORKER_MIN")
	workerMax := v.GetInt("WORKER_MAX")
	if workerMin <= 0 || workerMax <= 0 || workerMin > workerMax {
		return nil, fmt.Errorf("invalid worker pool bounds: min=%d max=%d", workerMin, workerMax)
	}

	cfg := &Config{
		Analyzers:              analyzers,
		MaxConsecutiveFailures: v.GetInt64("MAX_CONSECUTIVE_FAILURES"),
		OfflineTimeout:         offlineTimeout,
		DeficitThreshold:       v.GetFloat64("DEFICIT_THRESHOLD"),
		QueueCapacity:          v.GetInt("QUEUE_CAPACITY"),
		WorkerMin:              workerMin,
		WorkerMax:              workerMax,
		RequestTimeout:         requestTimeout,
		SweepInterval:          sweepInterval,
		Port:                   v.GetString("PORT"),
	}

	if cfg.MaxConsecutiveFailures <= 0 {
		return nil, fmt.Errorf("MAX_CONSECUTIVE_FAILURES must be positive, got %d", cfg.MaxConsecutiveFailures)
	}
	if cfg.QueueCapacity <= 0 {
		return nil, fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", cfg.QueueCapacity)
	}

	return cfg, nil
}

// parseAnalyzersConfig parses the ANALYZERS_CONFIG env format:
// "id1:endpoint1:weight1,id2:endpoint2:weight2,...". Records are split on
// the last colon since endpoints themselves contain colons (scheme and
// port). An empty string yields the built-in default table.
func parseAnalyzersConfig(raw string) ([]AnalyzerSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultAnalyzers(), nil
	}

	records := strings.Split(raw, ",")
	specs := make([]AnalyzerSpec, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, record := range records {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}

		lastColon := strings.LastIndex(record, ":")
		if lastColon <= 0 || lastColon == len(record)-1 {
			return nil, fmt.Errorf("malformed analyzer record %q: expected id:endpoint:weight", record)
		}

		idAndEndpoint := record[:lastColon]
		weightStr := record[lastColon+1:]

		firstColon := strings.Index(idAndEndpoint, ":")
		if firstColon <= 0 || firstColon == len(idAndEndpoint)-1 {
			return nil, fmt.Errorf("malformed analyzer record %q: missing id or endpoint", record)
		}

		id := idAndEndpoint[:firstColon]
		endpoint := idAndEndpoint[firstColon+1:]

		weight, err := strconv.ParseFloat(weightStr, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed weight in record %q: %w", record, err)
		}
		if weight <= 0 || weight > 1 {
			return nil, fmt.Errorf("weight %v for analyzer %q must be in (0, 1]", weight, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate analyzer id %q", id)
		}
		seen[id] = true

		specs = append(specs, AnalyzerSpec{ID: id, Endpoint: endpoint, Weight: weight})
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("ANALYZERS_CONFIG set but contains no valid records")
	}

	return specs, nil
}
