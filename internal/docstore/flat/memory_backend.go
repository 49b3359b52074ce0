package flat

import (
	"context"
	"sort"
	"sync"

	"lexicon/internal/docstore"
)

// MemoryBackend is an in-process Backend, mainly for tests of the flat adapter.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
	clock       int64
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]map[string]Record)}
}

// Collections lists the flat collection names that hold documents.
func (b *MemoryBackend) Collections() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.collections))
	for name, docs := range b.collections {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (b *MemoryBackend) Get(_ context.Context, collection, id string) (Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.collections[collection][id]
	if !ok {
		return Record{}, false, nil
	}
	return copyRecord(rec), true, nil
}

func (b *MemoryBackend) GetByField(_ context.Context, collection, field, value string) (Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var (
		found Record
		ok    bool
	)
	for id, rec := range b.collections[collection] {
		if v, isString := rec.Data[field].(string); isString && v == value {
			if !ok || id < found.ID {
				found, ok = rec, true
			}
		}
	}
	if !ok {
		return Record{}, false, nil
	}
	return copyRecord(found), true, nil
}

func (b *MemoryBackend) Put(_ context.Context, collection, id string, data map[string]any, cond docstore.Conditions) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	docs := b.collections[collection]
	if docs == nil {
		docs = make(map[string]Record)
		b.collections[collection] = docs
	}
	cur, exists := docs[id]
	if err := cond.Check(docstore.JoinPath(collection, id), cur.Version, exists); err != nil {
		return 0, err
	}
	b.clock++
	docs[id] = Record{ID: id, Version: b.clock, Data: docstore.CopyMap(data)}
	return b.clock, nil
}

func (b *MemoryBackend) Delete(_ context.Context, collection, id string, cond docstore.Conditions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, exists := b.collections[collection][id]
	if err := cond.Check(docstore.JoinPath(collection, id), cur.Version, exists); err != nil {
		return err
	}
	delete(b.collections[collection], id)
	return nil
}

func (b *MemoryBackend) Scan(_ context.Context, collection string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	docs := b.collections[collection]
	out := make([]Record, 0, len(docs))
	for _, rec := range docs {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *MemoryBackend) Purge(_ context.Context, collections []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range collections {
		delete(b.collections, name)
	}
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

func copyRecord(r Record) Record {
	r.Data = docstore.CopyMap(r.Data)
	return r
}
