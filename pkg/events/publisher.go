package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/logger"
)

// Event is a publishable domain event. Key returns the Kafka message key
// used for partitioning, so events for the same entity stay ordered.
type Event interface {
	Key() string
}

// Config holds Kafka/Redpanda producer settings
type Config struct {
	Enabled  bool
	Brokers  []string
	ClientID string
}

// Publisher publishes domain events to Kafka. When disabled it is a no-op,
// so call sites never need to branch on whether eventing is on.
type Publisher struct {
	client  *kgo.Client
	enabled bool
}

// NewPublisher creates a Kafka publisher. A nil or disabled config returns
// a no-op publisher and no error.
func NewPublisher(cfg *Config) (*Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka enabled but no brokers configured")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Publisher{client: client, enabled: true}, nil
}

// Enabled reports whether events will actually be published
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish marshals the event as JSON and publishes it synchronously
func (p *Publisher) Publish(ctx context.Context, topic string, event Event) error {
	if !p.enabled {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for topic %s: %w", topic, err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(event.Key()),
		Value: payload,
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// PublishAsync publishes the event without waiting for the broker ack.
// Delivery failures are logged, not returned; use Publish when the caller
// needs the result.
func (p *Publisher) PublishAsync(ctx context.Context, topic string, event Event) {
	if !p.enabled {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to marshal event",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(event.Key()),
		Value: payload,
	}

	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			logger.Error("event delivery failed",
				zap.String("topic", r.Topic),
				zap.Error(err),
			)
		}
	})
}

// Close flushes pending records and closes the underlying client
func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
