package flat

import (
	"context"

	"lexicon/internal/docstore"
)

// Record is a stored document of a flat collection.
type Record struct {
	ID      string
	Version int64
	Data    map[string]any
}

// Backend is a store of flat, independently named collections. Put and Delete evaluate
// conditions atomically and return *docstore.ConflictError when they do not hold.
type Backend interface {
	Get(ctx context.Context, collection, id string) (Record, bool, error)
	// GetByField returns the first record (by id) whose top-level field equals value.
	GetByField(ctx context.Context, collection, field, value string) (Record, bool, error)
	Put(ctx context.Context, collection, id string, data map[string]any, cond docstore.Conditions) (int64, error)
	Delete(ctx context.Context, collection, id string, cond docstore.Conditions) error
	// Scan returns every record of collection ordered by id.
	Scan(ctx context.Context, collection string) ([]Record, error)
	Close() error
}

// Finder is implemented by backends that can push equality filters down. Results may be
// unordered and are not limited; the adapter applies the full query afterwards.
type Finder interface {
	Find(ctx context.Context, collection string, q docstore.Query) ([]Record, error)
}

// Purger is implemented by backends that can drop whole collections in one round trip.
type Purger interface {
	Purge(ctx context.Context, collections []string) error
}
