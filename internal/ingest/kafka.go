// Package ingest bridges the in-process realtime bus to Kafka. The
// exporter taps the location_update topic and forwards every fix, standing
// in for the egress side of a genuine GPS ingestion pipeline; cmd/consumer
// is the matching ingress side.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Maaady/RidePulse/internal/bus"
	"github.com/Maaady/RidePulse/internal/models"
)

type KafkaExporter struct {
	writer *kafka.Writer
}

func NewKafkaExporter(brokers []string, topic string) *KafkaExporter {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaExporter{writer: w}
}

// Attach subscribes the exporter to the bus's location_update topic and
// returns the unsubscribe capability.
func (k *KafkaExporter) Attach(b *bus.Bus) func() {
	return b.Subscribe(models.TopicLocationUpdate, func(env bus.Envelope) {
		u, ok := env.Payload.(models.LocationUpdate)
		if !ok {
			return
		}
		_ = k.PublishLocation(u)
	})
}

func (k *KafkaExporter) PublishLocation(u models.LocationUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(u)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(u.DriverID), Value: b})
}

func (k *KafkaExporter) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
