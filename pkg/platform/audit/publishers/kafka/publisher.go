// Package kafka publishes change events to a Kafka topic, keyed by resource so each
// resource's history stays in one partition.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "lexicon/pkg/platform/audit"
	"lexicon/pkg/platform/audit/metrics"
)

const transport = "kafka"

// Publisher produces change events synchronously.
type Publisher struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New connects to brokers and makes sure topic exists.
func New(ctx context.Context, brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}
	if err := EnsureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	p := &Publisher{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates topic with broker defaults unless it already exists.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, -1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Publish produces one record and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	start := time.Now()
	payload, err := event.Marshal()
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Key()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "target", Value: []byte(event.Target)},
		},
	}
	err = p.client.ProduceSync(ctx, record).FirstErr()
	if p.metrics != nil {
		p.metrics.ObservePublish(transport, err, time.Since(start))
	}
	if err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "change event publish failed",
				"transport", transport,
				"resource_id", event.ResourceID,
				"target", event.Target,
				"error", err,
			)
		}
		return fmt.Errorf("produce change event: %w", err)
	}
	return nil
}

// Health pings the brokers.
func (p *Publisher) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
