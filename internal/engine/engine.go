// Package engine wires the identity, vocabulary, mapping, provenance and user input services
// over one document store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lexicon/internal/docstore"
	dsmetrics "lexicon/internal/docstore/metrics"
	"lexicon/internal/identity"
	"lexicon/internal/mapping"
	"lexicon/internal/platform/config"
	"lexicon/internal/platform/httpserver"
	"lexicon/internal/provenance"
	"lexicon/internal/relationship"
	"lexicon/internal/table"
	"lexicon/internal/terminology"
	"lexicon/internal/userinput"
	"lexicon/pkg/platform/audit"
	auditmetrics "lexicon/pkg/platform/audit/metrics"
)

// Engine holds the wired services.
type Engine struct {
	Store         docstore.Store
	Repository    *terminology.Repository
	Identity      *identity.Service
	Provenance    *provenance.Service
	Relationships *relationship.Vocabulary
	Terminologies *terminology.Service
	Mappings      *mapping.Service
	UserInput     *userinput.Service
	Tables        *table.Service

	publisher audit.Publisher
	logger    *slog.Logger
}

// Deps are the engine's external resources. Store is required; the rest have defaults.
type Deps struct {
	Store     docstore.Store
	Publisher audit.Publisher
	Logger    *slog.Logger
	// Registerer receives service metrics; nil disables them.
	Registerer prometheus.Registerer
	// RelationshipLoader overrides reading the reference terminology.
	RelationshipLoader        relationship.Loader
	RelationshipTerminologyID string
	RelationshipTTL           time.Duration
}

// New builds the services in dependency order. Mapping reads terminologies through the
// repository, so the terminology service can take the mapping service as its cascade.
func New(d Deps) (*Engine, error) {
	if d.Store == nil {
		return nil, errors.New("document store is required")
	}
	if d.Publisher == nil {
		d.Publisher = audit.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RelationshipTerminologyID == "" {
		d.RelationshipTerminologyID = config.DefaultRelationshipTerminologyID
	}

	e := &Engine{Store: d.Store, publisher: d.Publisher, logger: d.Logger}
	e.Repository = terminology.NewRepository(d.Store)

	var idMetrics *identity.Metrics
	var provMetrics *provenance.Metrics
	if d.Registerer != nil {
		idMetrics = identity.NewMetrics(d.Registerer)
		provMetrics = provenance.NewMetrics(d.Registerer)
	}

	var err error
	if e.Identity, err = identity.New(d.Store,
		identity.WithLogger(d.Logger),
		identity.WithMetrics(idMetrics),
	); err != nil {
		return nil, err
	}
	if e.Provenance, err = provenance.New(d.Store,
		provenance.WithLogger(d.Logger),
		provenance.WithMetrics(provMetrics),
		provenance.WithPublisher(d.Publisher),
	); err != nil {
		return nil, err
	}

	loader := d.RelationshipLoader
	if loader == nil {
		loader = relationship.NewStoreLoader(e.Repository, d.RelationshipTerminologyID)
	}
	if e.Relationships, err = relationship.NewVocabulary(loader,
		relationship.WithTTL(d.RelationshipTTL),
		relationship.WithLogger(d.Logger),
	); err != nil {
		return nil, err
	}

	if e.UserInput, err = userinput.New(d.Store, userinput.WithLogger(d.Logger)); err != nil {
		return nil, err
	}
	if e.Mappings, err = mapping.New(e.Repository, d.Store, e.Relationships, e.Provenance,
		mapping.WithLogger(d.Logger),
		mapping.WithUserInput(e.UserInput),
	); err != nil {
		return nil, err
	}
	if e.Terminologies, err = terminology.New(e.Repository, e.Identity, e.Provenance, e.Mappings,
		terminology.WithLogger(d.Logger),
	); err != nil {
		return nil, err
	}
	if e.Tables, err = table.New(d.Store, e.Identity, e.Terminologies, e.Provenance,
		table.WithLogger(d.Logger),
	); err != nil {
		return nil, err
	}
	return e, nil
}

// Open builds an engine from configuration: backend, change feed, optional relationship seed.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Engine, error) {
	var storeMetrics *dsmetrics.Metrics
	var feedMetrics *auditmetrics.Metrics
	if reg != nil {
		storeMetrics = dsmetrics.New(reg)
		feedMetrics = auditmetrics.New(reg)
	}

	store, err := OpenStore(ctx, cfg, storeMetrics)
	if err != nil {
		return nil, err
	}
	publisher, err := OpenPublisher(ctx, cfg.ChangeFeed, logger, feedMetrics)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	e, err := New(Deps{
		Store:                     store,
		Publisher:                 publisher,
		Logger:                    logger,
		Registerer:                reg,
		RelationshipTerminologyID: cfg.Relationship.TerminologyID,
		RelationshipTTL:           cfg.Relationship.RefreshInterval,
	})
	if err != nil {
		_ = publisher.Close()
		_ = store.Close()
		return nil, err
	}

	if cfg.Relationship.Seed {
		created, err := e.SeedRelationships(ctx, cfg.Relationship.TerminologyID)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		if created {
			logger.InfoContext(ctx, "seeded relationship vocabulary", "terminology_id", cfg.Relationship.TerminologyID)
		}
	}
	return e, nil
}

// SeedRelationships writes the default relationship vocabulary when it is missing and
// reloads the cache.
func (e *Engine) SeedRelationships(ctx context.Context, terminologyID string) (bool, error) {
	if terminologyID == "" {
		terminologyID = config.DefaultRelationshipTerminologyID
	}
	created, err := relationship.Seed(ctx, e.Repository, terminologyID)
	if err != nil {
		return false, fmt.Errorf("seed relationship vocabulary: %w", err)
	}
	if created {
		if err := e.Relationships.Refresh(ctx); err != nil {
			return true, err
		}
	}
	return created, nil
}

// Checks returns readiness checks for the store and, when it supports one, the change feed.
func (e *Engine) Checks() map[string]httpserver.Checker {
	checks := map[string]httpserver.Checker{
		"store": httpserver.CheckerFunc(func(ctx context.Context) error {
			return docstore.Health(ctx, e.Store)
		}),
	}
	if hc, ok := e.publisher.(interface{ Health(context.Context) error }); ok {
		checks["change_feed"] = httpserver.CheckerFunc(hc.Health)
	}
	return checks
}

// Close flushes the change feed, then closes the store.
func (e *Engine) Close() error {
	return errors.Join(e.publisher.Close(), e.Store.Close())
}
