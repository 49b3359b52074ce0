package engine

import (
	"context"
	"fmt"
	"time"

	"lexicon/internal/docstore"
	"lexicon/internal/docstore/flat"
	"lexicon/internal/docstore/flat/redisstore"
	"lexicon/internal/docstore/flat/sqlstore"
	"lexicon/internal/docstore/memory"
	dsmetrics "lexicon/internal/docstore/metrics"
	"lexicon/internal/platform/config"
	"lexicon/internal/platform/redis"
	"lexicon/internal/platform/sqldb"
)

// OpenStore connects the configured backend, migrates its schema and wraps it with
// instrumentation. Connection and configuration failures are returned, never deferred.
func OpenStore(ctx context.Context, cfg config.Config, m *dsmetrics.Metrics) (docstore.Store, error) {
	ctx, cancel := withTimeout(ctx, cfg.Store.OpTimeout)
	defer cancel()

	var store docstore.Store
	switch cfg.Store.Backend {
	case config.BackendMemory:
		store = memory.New()
	case config.BackendPostgres, config.BackendSQLite:
		if cfg.Store.DSN == "" {
			return nil, fmt.Errorf("store dsn is required for the %s backend", cfg.Store.Backend)
		}
		driver := sqldb.DriverPostgres
		if cfg.Store.Backend == config.BackendSQLite {
			driver = sqldb.DriverSQLite
		}
		db, err := sqldb.Open(ctx, driver, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
		}
		if cfg.Store.Backend == config.BackendSQLite {
			store = flat.New(sqlstore.NewSQLite(db, cfg.Store.Table))
		} else {
			store = flat.New(sqlstore.NewPostgres(db, cfg.Store.Table))
		}
	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		backend, err := redisstore.New(client.Client, cfg.Store.KeyPrefix)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		store = flat.New(backend)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if err := docstore.Migrate(ctx, store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Store.Backend, err)
	}
	return docstore.Instrument(store, cfg.Store.Backend, m), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
