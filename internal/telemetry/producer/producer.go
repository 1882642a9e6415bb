// Package producer publishes telemetry events to a message broker for the Loki worker to consume.
package producer

import (
	"context"

	"connections-portal/backend/internal/telemetry/domain"
)

// Producer publishes telemetry events. It satisfies telemetry.EventEmitter, so the server fans out to it
// alongside the OTel emitter. Errors are for logging only.
type Producer interface {
	Emit(ctx context.Context, event *domain.Event) error
	Close() error
}

var _ Producer = (*KafkaProducer)(nil)
