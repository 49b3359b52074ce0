// Package docstore is a hierarchical document store abstraction: collections hold documents,
// documents hold sub-collections. Backends either model the hierarchy natively (memory) or emulate
// it over flat collections (see package flat).
package docstore

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Store is the root of a document hierarchy.
type Store interface {
	Collection(name string) CollectionRef
	Close() error
}

// CollectionRef addresses a collection of documents.
type CollectionRef interface {
	// Name is the backend-visible collection name. Flat backends return the synthesized name.
	Name() string
	// Path is the logical slash-separated path, e.g. Terminology/tm-1/mappings.
	Path() string
	Document(id string) DocumentRef
	// Add creates a document with a generated id and returns that id.
	Add(ctx context.Context, data map[string]any) (string, error)
	// Stream calls fn for every document ordered by id. Returning an error from fn stops iteration.
	Stream(ctx context.Context, fn func(Snapshot) error) error
	Find(ctx context.Context, q Query) ([]Snapshot, error)
}

// DocumentRef addresses a single document, which may or may not exist.
type DocumentRef interface {
	ID() string
	Path() string
	// Get never fails for a missing document; the snapshot reports Exists() == false.
	Get(ctx context.Context) (Snapshot, error)
	// Set replaces the whole document and returns the storage id it was written under.
	Set(ctx context.Context, data map[string]any, preconditions ...Precondition) (string, error)
	// Delete removes the document. Deleting a missing document without preconditions is a no-op.
	Delete(ctx context.Context, preconditions ...Precondition) error
	Collection(name string) CollectionRef
}

// Purgeable is implemented by collections that can drop all of their documents in one call.
type Purgeable interface {
	Purge(ctx context.Context) error
}

// HealthChecker is implemented by stores backed by a remote service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Migrator is implemented by stores that need schema setup before first use.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// NewID returns a random document id for Add.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// JoinPath joins logical path segments.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// Health reports the store health when the backend supports it.
func Health(ctx context.Context, s Store) error {
	if hc, ok := s.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// Migrate prepares the backend schema when the backend needs one.
func Migrate(ctx context.Context, s Store) error {
	if m, ok := s.(Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}
