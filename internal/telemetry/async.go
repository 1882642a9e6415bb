package telemetry

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"connections-portal/backend/internal/telemetry/domain"
)

// emitTimeout bounds a single background emit.
const emitTimeout = 5 * time.Second

// inflight tracks goroutines started by EmitAsync so shutdown can wait for them.
var inflight sync.WaitGroup

// EmitAsync emits event in the background with its own emitTimeout deadline, detached from ctx,
// so a finished request does not cancel its telemetry. Failures are logged. Nil emitter or event is a no-op.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit %s failed: %v", event.EventType, err)
		}
	}()
}

// Drain blocks until every pending EmitAsync call finishes or ctx is done.
// Call it after the HTTP server has stopped and before exporters shut down.
func Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fanout sends each event to every non-nil emitter; errors from all of them are joined.
type Fanout []EventEmitter

// Emit sends event to all emitters in order.
func (f Fanout) Emit(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, e := range f {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
