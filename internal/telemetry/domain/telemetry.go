package domain

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	EventTypeAudit       = "audit"
	EventTypeHTTPRequest = "http_request"
)

// Event is a telemetry event as written to Kafka and OTel logs. Identity is the acting email, if known.
type Event struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Identity  string          `json:"identity,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
