package audit

import (
	"context"
	"errors"
	"log/slog"

	"lexicon/pkg/platform/circuit"
)

// ErrFeedDegraded is reported by Guarded.Health while its breaker is open.
var ErrFeedDegraded = errors.New("change feed degraded: events are going to the fallback")

// LogPublisher writes events to a logger. It is the fallback of a degraded feed, so
// undelivered events still leave a trace.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, event Event) error {
	p.Logger.WarnContext(ctx, "change event not delivered to feed",
		"event_id", event.ID,
		"resource", event.Key(),
		"target", event.Target,
		"action", event.Action,
		"editor", event.Editor,
		"old_value", event.OldValue,
		"new_value", event.NewValue,
		"request_id", event.RequestID,
		"log_type", "audit",
	)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Guarded wraps a remote publisher with a circuit breaker. While the breaker refuses the
// primary, events go straight to the fallback.
type Guarded struct {
	primary  Publisher
	fallback Publisher
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewGuarded builds a Guarded publisher. A nil fallback discards events.
func NewGuarded(primary, fallback Publisher, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if fallback == nil {
		fallback = Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

// Publish tries the primary when the breaker allows it. A primary failure is returned
// unless the breaker is open, in which case the fallback result is returned.
func (g *Guarded) Publish(ctx context.Context, event Event) error {
	if !g.breaker.Allow() {
		return g.fallback.Publish(ctx, event)
	}
	err := g.primary.Publish(ctx, event)
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "change feed recovered", "breaker", g.breaker.Name())
		}
		return nil
	}
	useFallback, change := g.breaker.RecordFailure()
	if change.Opened {
		g.logger.WarnContext(ctx, "change feed breaker opened", "breaker", g.breaker.Name(), "error", err)
	}
	if useFallback {
		return g.fallback.Publish(ctx, event)
	}
	return err
}

// Health fails while the breaker is open, then defers to the primary.
func (g *Guarded) Health(ctx context.Context) error {
	if g.breaker.IsOpen() {
		return ErrFeedDegraded
	}
	if hc, ok := g.primary.(interface{ Health(context.Context) error }); ok {
		return hc.Health(ctx)
	}
	return nil
}

func (g *Guarded) Close() error {
	return errors.Join(g.primary.Close(), g.fallback.Close())
}
