// Package nats publishes change events on a NATS subject. The resource type and action are
// appended as subject tokens so subscribers can filter with wildcards.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	audit "lexicon/pkg/platform/audit"
	"lexicon/pkg/platform/audit/metrics"
)

const transport = "nats"

// Publisher publishes change events and flushes before returning.
type Publisher struct {
	conn    *nats.Conn
	subject string
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

// New connects to url.
func New(url, subject string, opts ...Option) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	conn, err := nats.Connect(url, nats.Name("lexicon"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewWithConn(conn, subject, opts...), nil
}

// NewWithConn wraps an existing connection. The publisher owns it afterwards.
func NewWithConn(conn *nats.Conn, subject string, opts ...Option) *Publisher {
	p := &Publisher{conn: conn, subject: subject}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subject returns the subject an event is published on, e.g. lexicon.provenance.Terminology.Edit.
func (p *Publisher) Subject(event audit.Event) string {
	return p.subject + "." + token(event.ResourceType) + "." + token(event.Action)
}

func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}

// Publish sends one message and flushes so delivery errors surface to the caller.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	start := time.Now()
	payload, err := event.Marshal()
	if err != nil {
		return err
	}
	msg := nats.NewMsg(p.Subject(event))
	msg.Data = payload
	msg.Header.Set("Lexicon-Resource", event.Key())
	msg.Header.Set(nats.MsgIdHdr, event.ID)

	err = p.conn.PublishMsg(msg)
	if err == nil {
		err = p.conn.FlushWithContext(ctx)
	}
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
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Health reports the connection state.
func (p *Publisher) Health(context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats connection is %s", p.conn.Status())
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
