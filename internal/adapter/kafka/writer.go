// Package kafka publishes publication events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/config"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

// Notifier produces one message per committed publication.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured publication topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify publishes ev. Events of the same target share a key and therefore a
// partition, so consumers see them in publication order.
func (n *Notifier) Notify(ctx context.Context, ev domain.PublicationEvent) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event for %s: %w", ev.EventKey(), err)
	}
	n.logger.Debug("publication event sent", "topic", n.writer.Topic, "key", ev.EventKey())
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a PublicationEvent into a Kafka message.
func serializeToMessage(ev domain.PublicationEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize publication event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.EventKey()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "collection", Value: []byte(ev.Collection)},
			{Key: "parameter", Value: []byte(ev.Parameter)},
			{Key: "bands", Value: []byte(strconv.Itoa(ev.Bands))},
			{Key: "published_at", Value: []byte(ev.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
