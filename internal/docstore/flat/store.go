// Package flat emulates a document hierarchy on backends that only have flat collections.
// A sub-collection {sub} of document {id} in collection {parent} is stored as the flat
// collection "{parent}__{id}__{sub}", while the logical path is kept for diagnostics.
package flat

import (
	"context"
	"fmt"

	"lexicon/internal/docstore"
)

// Separator joins the parts of a synthesized sub-collection name.
const Separator = "__"

// AliasField is the document field consulted when a native id lookup misses.
const AliasField = "id"

// SubCollectionName synthesizes the flat name of a nested collection.
func SubCollectionName(parentCollection, parentDocID, sub string) string {
	return parentCollection + Separator + parentDocID + Separator + sub
}

// Store adapts a Backend to docstore.Store.
type Store struct {
	backend Backend
}

// New wraps backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Collection(name string) docstore.CollectionRef {
	return &collectionRef{store: s, name: name, path: name}
}

func (s *Store) Close() error { return s.backend.Close() }

// Health delegates to the backend when it can report health.
func (s *Store) Health(ctx context.Context) error {
	if hc, ok := s.backend.(docstore.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// Migrate delegates schema setup to the backend.
func (s *Store) Migrate(ctx context.Context) error {
	if m, ok := s.backend.(docstore.Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}

type collectionRef struct {
	store *Store
	name  string
	path  string
}

func (c *collectionRef) Name() string { return c.name }
func (c *collectionRef) Path() string { return c.path }

func (c *collectionRef) Document(id string) docstore.DocumentRef {
	return &documentRef{coll: c, id: id}
}

func (c *collectionRef) Add(ctx context.Context, data map[string]any) (string, error) {
	return c.Document(docstore.NewID()).Set(ctx, data, docstore.MustNotExist())
}

func (c *collectionRef) snapshot(r Record) docstore.Snapshot {
	return docstore.NewSnapshot(r.ID, docstore.JoinPath(c.path, r.ID), r.Version, r.Data)
}

func (c *collectionRef) Stream(ctx context.Context, fn func(docstore.Snapshot) error) error {
	records, err := c.store.backend.Scan(ctx, c.name)
	if err != nil {
		return fmt.Errorf("stream %s: %w", c.path, err)
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c.snapshot(r)); err != nil {
			return err
		}
	}
	return nil
}

func (c *collectionRef) Find(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	var (
		records []Record
		err     error
	)
	if f, ok := c.store.backend.(Finder); ok {
		records, err = f.Find(ctx, c.name, q)
	} else {
		records, err = c.store.backend.Scan(ctx, c.name)
	}
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.path, err)
	}
	snaps := make([]docstore.Snapshot, len(records))
	for i, r := range records {
		snaps[i] = c.snapshot(r)
	}
	return q.Apply(snaps), nil
}

// Purge drops this collection only. Nested collections are separate flat collections.
func (c *collectionRef) Purge(ctx context.Context) error {
	if p, ok := c.store.backend.(Purger); ok {
		return p.Purge(ctx, []string{c.name})
	}
	return docstore.PurgeByDelete(ctx, c)
}

type documentRef struct {
	coll *collectionRef
	id   string
}

func (d *documentRef) ID() string   { return d.id }
func (d *documentRef) Path() string { return docstore.JoinPath(d.coll.path, d.id) }

func (d *documentRef) Collection(name string) docstore.CollectionRef {
	return &collectionRef{
		store: d.coll.store,
		name:  SubCollectionName(d.coll.name, d.id, name),
		path:  docstore.JoinPath(d.coll.path, d.id, name),
	}
}

// lookup finds the record by native id, then by alias field.
func (d *documentRef) lookup(ctx context.Context) (Record, bool, error) {
	backend := d.coll.store.backend
	rec, ok, err := backend.Get(ctx, d.coll.name, d.id)
	if err != nil || ok {
		return rec, ok, err
	}
	return backend.GetByField(ctx, d.coll.name, AliasField, d.id)
}

func (d *documentRef) Get(ctx context.Context) (docstore.Snapshot, error) {
	rec, ok, err := d.lookup(ctx)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", d.Path(), err)
	}
	if !ok {
		return docstore.Missing(d.id, d.Path()), nil
	}
	return d.coll.snapshot(rec), nil
}

// Set writes to the aliased document when the handle's id only matches an alias.
func (d *documentRef) Set(ctx context.Context, data map[string]any, preconditions ...docstore.Precondition) (string, error) {
	norm, err := docstore.Normalize(data)
	if err != nil {
		return "", err
	}
	target := d.id
	rec, ok, err := d.lookup(ctx)
	if err != nil {
		return "", fmt.Errorf("set %s: %w", d.Path(), err)
	}
	if ok {
		target = rec.ID
	}
	if _, err := d.coll.store.backend.Put(ctx, d.coll.name, target, norm, docstore.Resolve(preconditions)); err != nil {
		return "", fmt.Errorf("set %s: %w", d.Path(), err)
	}
	return target, nil
}

func (d *documentRef) Delete(ctx context.Context, preconditions ...docstore.Precondition) error {
	target := d.id
	rec, ok, err := d.lookup(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", d.Path(), err)
	}
	if ok {
		target = rec.ID
	}
	if err := d.coll.store.backend.Delete(ctx, d.coll.name, target, docstore.Resolve(preconditions)); err != nil {
		return fmt.Errorf("delete %s: %w", d.Path(), err)
	}
	return nil
}
