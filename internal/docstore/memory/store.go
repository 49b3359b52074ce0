// Package memory is a native hierarchical document store held in process memory.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"lexicon/internal/docstore"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memory docstore is closed")

type collection struct {
	docs map[string]*document
}

type document struct {
	data    map[string]any
	version int64
	exists  bool
	subs    map[string]*collection
}

// Store keeps a collection/document tree under one lock. Versions come from a store-wide
// counter so a recreated document never reuses a version token.
type Store struct {
	mu     sync.RWMutex
	root   map[string]*collection
	clock  int64
	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{root: make(map[string]*collection)}
}

func (s *Store) Collection(name string) docstore.CollectionRef {
	return &collectionRef{store: s, segments: []string{name}}
}

// Close marks the store closed; data is dropped.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.root = nil
	return nil
}

// lookupCollection walks segments (odd length). create builds missing nodes.
func (s *Store) lookupCollection(segments []string, create bool) *collection {
	level := s.root
	var coll *collection
	for i := 0; i < len(segments); i += 2 {
		coll = level[segments[i]]
		if coll == nil {
			if !create {
				return nil
			}
			coll = &collection{docs: make(map[string]*document)}
			level[segments[i]] = coll
		}
		if i+1 == len(segments) {
			return coll
		}
		doc := coll.docs[segments[i+1]]
		if doc == nil {
			if !create {
				return nil
			}
			doc = &document{}
			coll.docs[segments[i+1]] = doc
		}
		if doc.subs == nil {
			if !create {
				return nil
			}
			doc.subs = make(map[string]*collection)
		}
		level = doc.subs
	}
	return coll
}

type collectionRef struct {
	store    *Store
	segments []string
}

func (c *collectionRef) Name() string { return c.segments[len(c.segments)-1] }
func (c *collectionRef) Path() string { return docstore.JoinPath(c.segments...) }

func (c *collectionRef) Document(id string) docstore.DocumentRef {
	return &documentRef{store: c.store, segments: append(append([]string(nil), c.segments...), id)}
}

func (c *collectionRef) Add(ctx context.Context, data map[string]any) (string, error) {
	return c.Document(docstore.NewID()).Set(ctx, data, docstore.MustNotExist())
}

func (c *collectionRef) snapshots() ([]docstore.Snapshot, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if c.store.closed {
		return nil, ErrClosed
	}
	coll := c.store.lookupCollection(c.segments, false)
	if coll == nil {
		return nil, nil
	}
	out := make([]docstore.Snapshot, 0, len(coll.docs))
	for id, doc := range coll.docs {
		if !doc.exists {
			continue
		}
		out = append(out, docstore.NewSnapshot(id, docstore.JoinPath(c.Path(), id), doc.version, docstore.CopyMap(doc.data)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Stream releases the lock before calling fn so callbacks may write.
func (c *collectionRef) Stream(ctx context.Context, fn func(docstore.Snapshot) error) error {
	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	for _, s := range snaps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *collectionRef) Find(_ context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, err
	}
	return q.Apply(snaps), nil
}

// Purge drops the collection node, including nested sub-collections.
func (c *collectionRef) Purge(context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.store.closed {
		return ErrClosed
	}
	if len(c.segments) == 1 {
		delete(c.store.root, c.segments[0])
		return nil
	}
	parent := c.store.lookupCollection(c.segments[:len(c.segments)-2], false)
	if parent == nil {
		return nil
	}
	if doc := parent.docs[c.segments[len(c.segments)-2]]; doc != nil && doc.subs != nil {
		delete(doc.subs, c.Name())
	}
	return nil
}

type documentRef struct {
	store    *Store
	segments []string
}

func (d *documentRef) ID() string   { return d.segments[len(d.segments)-1] }
func (d *documentRef) Path() string { return docstore.JoinPath(d.segments...) }

func (d *documentRef) Collection(name string) docstore.CollectionRef {
	return &collectionRef{store: d.store, segments: append(append([]string(nil), d.segments...), name)}
}

func (d *documentRef) Get(ctx context.Context) (docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	if d.store.closed {
		return docstore.Snapshot{}, ErrClosed
	}
	coll := d.store.lookupCollection(d.segments[:len(d.segments)-1], false)
	if coll == nil {
		return docstore.Missing(d.ID(), d.Path()), nil
	}
	doc := coll.docs[d.ID()]
	if doc == nil || !doc.exists {
		return docstore.Missing(d.ID(), d.Path()), nil
	}
	return docstore.NewSnapshot(d.ID(), d.Path(), doc.version, docstore.CopyMap(doc.data)), nil
}

func (d *documentRef) Set(ctx context.Context, data map[string]any, preconditions ...docstore.Precondition) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	norm, err := docstore.Normalize(data)
	if err != nil {
		return "", err
	}
	cond := docstore.Resolve(preconditions)

	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if d.store.closed {
		return "", ErrClosed
	}
	coll := d.store.lookupCollection(d.segments[:len(d.segments)-1], true)
	doc := coll.docs[d.ID()]
	if doc == nil {
		doc = &document{}
		coll.docs[d.ID()] = doc
	}
	if err := cond.Check(d.Path(), doc.version, doc.exists); err != nil {
		return "", err
	}
	d.store.clock++
	doc.data = norm
	doc.version = d.store.clock
	doc.exists = true
	return d.ID(), nil
}

// Delete clears the document but keeps its sub-collections, which are purged separately.
func (d *documentRef) Delete(ctx context.Context, preconditions ...docstore.Precondition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cond := docstore.Resolve(preconditions)

	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if d.store.closed {
		return ErrClosed
	}
	coll := d.store.lookupCollection(d.segments[:len(d.segments)-1], false)
	var doc *document
	if coll != nil {
		doc = coll.docs[d.ID()]
	}
	if doc == nil || !doc.exists {
		return cond.Check(d.Path(), 0, false)
	}
	if err := cond.Check(d.Path(), doc.version, true); err != nil {
		return err
	}
	d.store.clock++
	doc.exists = false
	doc.data = nil
	doc.version = d.store.clock
	if len(doc.subs) == 0 {
		delete(coll.docs, d.ID())
	}
	return nil
}
