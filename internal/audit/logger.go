package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"connections-portal/backend/internal/audit/domain"
	"connections-portal/backend/internal/telemetry"
	telemetrydomain "connections-portal/backend/internal/telemetry/domain"
)

// UnknownOrigin is recorded for IP and user agent when the request context carries none.
const UnknownOrigin = "unknown"

// OriginExtractor returns the client IP and user agent for the request in ctx.
type OriginExtractor func(context.Context) (ip, userAgent string)

// AuditLogger writes a single audit event. Used by the OTP service on every login flow branch.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, action, identity, outcome, detail string)
}

// Logger implements AuditLogger using a Sink and an optional telemetry publisher.
type Logger struct {
	sink      Sink
	origin    OriginExtractor
	publisher telemetry.EventEmitter
	nowF      func() time.Time
}

// NewLogger returns an AuditLogger that records to sink and uses origin for client IP and user agent.
// origin and publisher may be nil; then origin is recorded as "unknown" and nothing is published.
func NewLogger(sink Sink, origin OriginExtractor, publisher telemetry.EventEmitter) *Logger {
	return &Logger{sink: sink, origin: origin, publisher: publisher, nowF: time.Now}
}

// LogEvent writes one audit entry and publishes it asynchronously. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, action, identity, outcome, detail string) {
	ip, ua := UnknownOrigin, UnknownOrigin
	if l.origin != nil {
		if i, u := l.origin(ctx); i != "" || u != "" {
			ip, ua = orUnknown(i), orUnknown(u)
		}
	}
	e := &domain.Event{
		ID:        uuid.New().String(),
		Action:    action,
		Identity:  identity,
		IP:        ip,
		UserAgent: ua,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: l.nowF(),
	}
	if l.sink != nil {
		if err := l.sink.Record(e); err != nil {
			log.Printf("audit: failed to log event %s/%s: %v", action, outcome, err)
		}
	}
	if l.publisher != nil {
		telemetry.EmitAsync(l.publisher, ctx, toTelemetryEvent(e))
	}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownOrigin
	}
	return s
}

type eventMetadata struct {
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

func toTelemetryEvent(e *domain.Event) *telemetrydomain.Event {
	meta, _ := json.Marshal(eventMetadata{
		Action:    e.Action,
		Outcome:   e.Outcome,
		Detail:    e.Detail,
		IP:        e.IP,
		UserAgent: e.UserAgent,
	})
	return &telemetrydomain.Event{
		ID:        e.ID,
		EventType: telemetrydomain.EventTypeAudit,
		Source:    "otp",
		Identity:  e.Identity,
		Metadata:  meta,
		CreatedAt: e.CreatedAt.UTC(),
	}
}
