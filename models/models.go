// Package models holds the wire-level and read-model types shared across
// the distributor: the ingest packet shape and the stats snapshot exposed
// over the HTTP and metrics surfaces.
package models

import (
	"time"

	"github.com/google/uuid"
)

// LogMessage is a single log entry carried inside a LogPacket. The core
// only ever reads Message, for the per-message length check; every field
// is passed through unmodified to the analyzer.
type LogMessage struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// LogPacket is the atomic unit of ingest. PacketID and AgentID are opaque
// correlation identifiers; Messages must be non-empty. TotalMessages and
// Checksum are accepted for compatibility with older emitter agents and
// are otherwise ignored.
type LogPacket struct {
	PacketID      string       `json:"packetId"`
	AgentID       string       `json:"agentId"`
	Messages      []LogMessage `json:"messages"`
	Timestamp     time.Time    `json:"timestamp,omitempty"`
	Checksum      string       `json:"checksum,omitempty"`
	TotalMessages int          `json:"totalMessages,omitempty"`
}

// NewLogPacket stamps a packet with a generated PacketID when the caller
// did not supply one.
func NewLogPacket(agentID string, messages []LogMessage) LogPacket {
	return LogPacket{
		PacketID: uuid.New().String(),
		AgentID:  agentID,
		Messages: messages,
	}
}

// AnalyzerStat is the read-model view of one analyzer's runtime state,
// safe to marshal directly to JSON.
type AnalyzerStat struct {
	ID                  string    `json:"id"`
	Endpoint            string    `json:"endpoint"`
	Weight              float64   `json:"weight"`
	MessageCount        int64     `json:"message_count"`
	Online              bool      `json:"online"`
	ConsecutiveFailures int64     `json:"consecutive_failures"`
	LastFailureTime     time.Time `json:"last_failure_time,omitempty"`
}

// DistributorStats is the process-wide read model returned by the stats
// and health endpoints.
type DistributorStats struct {
	PacketsReceived        int64          `json:"packets_received"`
	PacketsQueued          int64          `json:"packets_queued"`
	PacketsProcessed       int64          `json:"packets_processed"`
	PacketsDropped         int64          `json:"packets_dropped"`
	TotalMessagesProcessed int64          `json:"total_messages_processed"`
	ActiveAnalyzers        int            `json:"active_analyzers"`
	Analyzers              []AnalyzerStat `json:"analyzers"`
	Uptime                 time.Duration  `json:"uptime"`
}
