package docstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lexicon/internal/docstore/metrics"
	"lexicon/pkg/platform/sentinel"
)

const tracerName = "lexicon/docstore"

// Instrument decorates s with a span and Prometheus observations per operation.
// A nil m disables metrics; spans go to the global tracer provider.
func Instrument(s Store, backend string, m *metrics.Metrics) Store {
	return &instrumentedStore{
		inner: s,
		obs:   &observer{backend: backend, metrics: m, tracer: otel.Tracer(tracerName)},
	}
}

type observer struct {
	backend string
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func (o *observer) do(ctx context.Context, op, path string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "docstore."+op, trace.WithAttributes(
		attribute.String("docstore.backend", o.backend),
		attribute.String("docstore.path", path),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			outcome = "conflict"
			if o.metrics != nil {
				o.metrics.IncrementConflict(o.backend, rootCollection(path))
			}
		} else {
			outcome = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if o.metrics != nil {
		o.metrics.ObserveOperation(o.backend, op, outcome, time.Since(start))
	}
	return err
}

func rootCollection(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

type instrumentedStore struct {
	inner Store
	obs   *observer
}

func (s *instrumentedStore) Collection(name string) CollectionRef {
	return &instrumentedCollection{inner: s.inner.Collection(name), obs: s.obs}
}

func (s *instrumentedStore) Close() error { return s.inner.Close() }

func (s *instrumentedStore) Health(ctx context.Context) error {
	return s.obs.do(ctx, "health", "", func(ctx context.Context) error {
		return Health(ctx, s.inner)
	})
}

func (s *instrumentedStore) Migrate(ctx context.Context) error {
	return s.obs.do(ctx, "migrate", "", func(ctx context.Context) error {
		return Migrate(ctx, s.inner)
	})
}

type instrumentedCollection struct {
	inner CollectionRef
	obs   *observer
}

func (c *instrumentedCollection) Name() string { return c.inner.Name() }
func (c *instrumentedCollection) Path() string { return c.inner.Path() }

func (c *instrumentedCollection) Document(id string) DocumentRef {
	return &instrumentedDocument{inner: c.inner.Document(id), obs: c.obs}
}

func (c *instrumentedCollection) Add(ctx context.Context, data map[string]any) (string, error) {
	var id string
	err := c.obs.do(ctx, "add", c.inner.Path(), func(ctx context.Context) error {
		var err error
		id, err = c.inner.Add(ctx, data)
		return err
	})
	return id, err
}

func (c *instrumentedCollection) Stream(ctx context.Context, fn func(Snapshot) error) error {
	return c.obs.do(ctx, "stream", c.inner.Path(), func(ctx context.Context) error {
		return c.inner.Stream(ctx, fn)
	})
}

func (c *instrumentedCollection) Find(ctx context.Context, q Query) ([]Snapshot, error) {
	var out []Snapshot
	err := c.obs.do(ctx, "find", c.inner.Path(), func(ctx context.Context) error {
		var err error
		out, err = c.inner.Find(ctx, q)
		return err
	})
	return out, err
}

func (c *instrumentedCollection) Purge(ctx context.Context) error {
	return c.obs.do(ctx, "purge", c.inner.Path(), func(ctx context.Context) error {
		return Purge(ctx, c.inner)
	})
}

type instrumentedDocument struct {
	inner DocumentRef
	obs   *observer
}

func (d *instrumentedDocument) ID() string   { return d.inner.ID() }
func (d *instrumentedDocument) Path() string { return d.inner.Path() }

func (d *instrumentedDocument) Get(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := d.obs.do(ctx, "get", d.inner.Path(), func(ctx context.Context) error {
		var err error
		snap, err = d.inner.Get(ctx)
		return err
	})
	return snap, err
}

func (d *instrumentedDocument) Set(ctx context.Context, data map[string]any, preconditions ...Precondition) (string, error) {
	var id string
	err := d.obs.do(ctx, "set", d.inner.Path(), func(ctx context.Context) error {
		var err error
		id, err = d.inner.Set(ctx, data, preconditions...)
		return err
	})
	return id, err
}

func (d *instrumentedDocument) Delete(ctx context.Context, preconditions ...Precondition) error {
	return d.obs.do(ctx, "delete", d.inner.Path(), func(ctx context.Context) error {
		return d.inner.Delete(ctx, preconditions...)
	})
}

func (d *instrumentedDocument) Collection(name string) CollectionRef {
	return &instrumentedCollection{inner: d.inner.Collection(name), obs: d.obs}
}
