package loki

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Consumer is the subset of *kafka.Reader the Forwarder uses.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Pusher sends entries to Loki. *Client implements it.
type Pusher interface {
	Push(ctx context.Context, entries ...Entry) error
}

// ForwarderConfig bounds a batch by size and age.
type ForwarderConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	PushTimeout   time.Duration
}

// Stats counts forwarded and failed messages.
type Stats struct {
	Pushed int
	Failed int
}

// Forwarder moves telemetry events from Kafka to Loki. Offsets are committed only after a batch
// is pushed, so delivery is at-least-once; a failed batch is retried before anything newer is read.
type Forwarder struct {
	consumer Consumer
	pusher   Pusher
	cfg      ForwarderConfig
	stats    Stats
}

// NewForwarder returns a Forwarder. Zero config fields get defaults (100 messages, 2s, 10s).
func NewForwarder(consumer Consumer, pusher Pusher, cfg ForwarderConfig) *Forwarder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 10 * time.Second
	}
	return &Forwarder{consumer: consumer, pusher: pusher, cfg: cfg}
}

// Stats returns counters so far. Not safe to call while Run is active.
func (f *Forwarder) Stats() Stats { return f.stats }

// Run forwards until ctx is done. Returns nil on cancellation.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		batch, err := f.fill(ctx)
		if len(batch) > 0 {
			f.flush(ctx, batch)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("worker: kafka fetch error: %v", err)
		}
	}
}

// fill reads until the batch is full or FlushInterval has passed since the first message.
func (f *Forwarder) fill(ctx context.Context) ([]kafka.Message, error) {
	var batch []kafka.Message
	fetchCtx := ctx
	cancel := func() {}
	defer func() { cancel() }()
	for len(batch) < f.cfg.BatchSize {
		msg, err := f.consumer.FetchMessage(fetchCtx)
		if err != nil {
			if len(batch) > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return batch, nil
			}
			return batch, err
		}
		if len(batch) == 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, f.cfg.FlushInterval)
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

// flush pushes and commits batch, retrying the push with backoff until it succeeds or ctx ends.
func (f *Forwarder) flush(ctx context.Context, batch []kafka.Message) {
	entries := make([]Entry, len(batch))
	for i, m := range batch {
		entries[i] = EntryFromEventJSON(m.Value)
	}
	backoff := 500 * time.Millisecond
	for {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.PushTimeout)
		err := f.pusher.Push(pushCtx, entries...)
		cancel()
		if err == nil {
			break
		}
		f.stats.Failed += len(batch)
		last := batch[len(batch)-1]
		log.Printf("worker: loki push failed (%d messages, partition %d offset %d): %v", len(batch), last.Partition, last.Offset, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
	f.stats.Pushed += len(batch)
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.PushTimeout)
	defer cancel()
	if err := f.consumer.CommitMessages(commitCtx, batch...); err != nil {
		log.Printf("worker: kafka commit failed: %v", err)
	}
}
