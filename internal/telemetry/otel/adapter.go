package otel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"connections-portal/backend/internal/telemetry"
	"connections-portal/backend/internal/telemetry/domain"
)

const instrumentationName = "connections-portal.telemetry"

// logEmitter is the subset of otellog.Logger used by the emitter.
type logEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter writing OTel log records through provider. Nil provider gives a no-op.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger directly.
func NewEventEmitterWithLogger(logger logEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger logEmitter
}

// Emit maps event to a log record named after its type. Object metadata becomes a map body so collectors
// can index its fields; anything else is kept as raw bytes.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	rec.SetEventName(event.EventType)
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())

	meta := decodeMetadata(event.Metadata)
	rec.SetSeverity(severityFor(meta))
	switch {
	case meta != nil:
		rec.SetBody(otellog.MapValue(toKeyValues(meta)...))
	case len(event.Metadata) > 0:
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}

	if event.ID != "" {
		rec.AddAttributes(otellog.String("event_id", event.ID))
	}
	rec.AddAttributes(otellog.String("event_type", event.EventType), otellog.String("source", event.Source))
	if event.Identity != "" {
		rec.AddAttributes(otellog.String("identity", event.Identity))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func decodeMetadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil
	}
	return m
}

// severityFor raises failed audit outcomes and 5xx responses to WARN/ERROR.
func severityFor(meta map[string]any) otellog.Severity {
	if meta["outcome"] == "FAILED" {
		return otellog.SeverityWarn
	}
	if code, ok := meta["status_code"].(json.Number); ok {
		if n, err := code.Int64(); err == nil {
			switch {
			case n >= 500:
				return otellog.SeverityError
			case n >= 400:
				return otellog.SeverityWarn
			}
		}
	}
	return otellog.SeverityInfo
}

func toKeyValues(m map[string]any) []otellog.KeyValue {
	kvs := make([]otellog.KeyValue, 0, len(m))
	for k, v := range m {
		kvs = append(kvs, otellog.KeyValue{Key: k, Value: toValue(v)})
	}
	return kvs
}

func toValue(v any) otellog.Value {
	switch x := v.(type) {
	case string:
		return otellog.StringValue(x)
	case bool:
		return otellog.BoolValue(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return otellog.Int64Value(n)
		}
		f, _ := x.Float64()
		return otellog.Float64Value(f)
	case map[string]any:
		return otellog.MapValue(toKeyValues(x)...)
	case []any:
		vals := make([]otellog.Value, len(x))
		for i, item := range x {
			vals[i] = toValue(item)
		}
		return otellog.SliceValue(vals...)
	case nil:
		return otellog.Value{}
	default:
		return otellog.StringValue(fmt.Sprint(x))
	}
}
