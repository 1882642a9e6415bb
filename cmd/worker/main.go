// Worker forwards telemetry events from Kafka to Loki in batches, committing offsets after each push.
// Requires KAFKA_BROKERS and LOKI_URL; TELEMETRY_KAFKA_TOPIC and KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"connections-portal/backend/internal/config"
	"connections-portal/backend/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	client, err := loki.NewClient(cfg.LokiURL, nil)
	if err != nil {
		log.Fatalf("worker: LOKI_URL: %v", err)
	}

	topic := firstNonEmpty(cfg.TelemetryKafkaTopic, "portal-telemetry")
	groupID := firstNonEmpty(cfg.KafkaGroupID, "portal-telemetry-worker")
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker: consuming %s as %s, pushing to %s", topic, groupID, cfg.LokiURL)
	fwd := loki.NewForwarder(reader, client, loki.ForwarderConfig{BatchSize: 200, FlushInterval: 2 * time.Second})
	if err := fwd.Run(ctx); err != nil {
		log.Printf("worker: %v", err)
	}
	stats := fwd.Stats()
	log.Printf("worker: stopped (pushed %d, failed attempts %d)", stats.Pushed, stats.Failed)
	if err := reader.Close(); err != nil {
		log.Printf("worker: close reader: %v", err)
	}
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
