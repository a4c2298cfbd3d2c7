// Package kafka publishes final aggregation results to a sink topic so
// downstream consumers (dashboards, alerting) pick up each run without
// polling the output file.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
)

// Publisher produces one message per dominant-category row.
// It implements pipeline.ResultLoader.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

func (p *Publisher) Name() string { return "kafka" }

// LoadResults serializes and publishes all rows in a single WriteMessages
// call. Messages are keyed by region id so a compacted topic retains only
// the latest run's row per region.
func (p *Publisher) LoadResults(ctx context.Context, results []domain.DominantCategory) error {
	if len(results) == 0 {
		p.logger.Debug("no dominant rows to publish", "topic", p.writer.Topic)
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	p.logger.Info("published dominant rows", "topic", p.writer.Topic, "rows", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a DominantCategory into a Kafka message.
func serializeToMessage(result domain.DominantCategory) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result for region %s: %w", result.RegionID, err)
	}
	return kafkago.Message{
		Key:   []byte(result.RegionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(result.EventType)},
			{Key: "produced_at", Value: []byte(domain.Now().Format(time.RFC3339))},
		},
	}, nil
}
