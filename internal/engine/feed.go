package engine

import (
	"context"
	"fmt"
	"log/slog"

	"lexicon/internal/platform/config"
	"lexicon/pkg/platform/audit"
	auditmetrics "lexicon/pkg/platform/audit/metrics"
	"lexicon/pkg/platform/audit/publishers/kafka"
	"lexicon/pkg/platform/audit/publishers/nats"
	"lexicon/pkg/platform/circuit"
)

// OpenPublisher connects the configured change feed. "none" discards events. Remote feeds
// are guarded by a circuit breaker that falls back to logging events.
func OpenPublisher(ctx context.Context, cfg config.ChangeFeed, logger *slog.Logger, m *auditmetrics.Metrics) (audit.Publisher, error) {
	switch cfg.Kind {
	case "", config.FeedNone:
		return audit.Nop{}, nil
	case config.FeedKafka:
		p, err := kafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, kafka.WithLogger(logger), kafka.WithMetrics(m))
		if err != nil {
			return nil, fmt.Errorf("open kafka change feed: %w", err)
		}
		return guard(p, config.FeedKafka, cfg.Breaker, logger), nil
	case config.FeedNATS:
		p, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.WithLogger(logger), nats.WithMetrics(m))
		if err != nil {
			return nil, fmt.Errorf("open nats change feed: %w", err)
		}
		return guard(p, config.FeedNATS, cfg.Breaker, logger), nil
	default:
		return nil, fmt.Errorf("unknown change feed %q", cfg.Kind)
	}
}

func guard(p audit.Publisher, name string, cfg config.Breaker, logger *slog.Logger) audit.Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuit.New(name,
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.SuccessThreshold),
		circuit.WithCooldown(cfg.Cooldown),
	)
	return audit.NewGuarded(p, audit.LogPublisher{Logger: logger}, breaker, logger)
}
