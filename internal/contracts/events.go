package contracts

import (
	"encoding/json"
	"time"
)

const (
	EventPostbackRelayed = "postback.relayed"
	SchemaVersionV1      = "v1"
)

// EventEnvelope wraps every audit event published by the relay.
type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type ChannelOutcome struct {
	Channel    string `json:"channel"`
	Status     string `json:"status"`
	Failure    string `json:"failure,omitempty"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type PostbackRelayedPayload struct {
	Profile  string            `json:"profile"`
	RecordID string            `json:"record_id"`
	Status   string            `json:"status"`
	Outcome  string            `json:"outcome"`
	Fields   map[string]string `json:"fields"`
	Channels []ChannelOutcome  `json:"channels"`
}
