package terminology

import (
	"context"
	"fmt"

	"lexicon/internal/docstore"
	"lexicon/pkg/domain"
	"lexicon/pkg/platform/sentinel"
)

// Repository persists terminologies in the document store. Errors wrap the storage
// sentinels; services translate them.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) collection() docstore.CollectionRef {
	return r.store.Collection(domain.CollectionTerminology)
}

// SubCollection returns a collection nested under Terminology/{id}.
func (r *Repository) SubCollection(id, name string) docstore.CollectionRef {
	return r.collection().Document(id).Collection(name)
}

// Load reads a terminology. Missing documents yield sentinel.ErrNotFound.
func (r *Repository) Load(ctx context.Context, id string) (*Terminology, error) {
	snap, err := r.collection().Document(id).Get(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return nil, fmt.Errorf("terminology %s: %w", id, sentinel.ErrNotFound)
	}
	return decode(snap)
}

// Exists reports whether the terminology document exists.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	snap, err := r.collection().Document(id).Get(ctx)
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}

// Create writes a new terminology; an existing document yields sentinel.ErrConflict.
func (r *Repository) Create(ctx context.Context, t *Terminology) error {
	return r.write(ctx, t, docstore.MustNotExist())
}

// Save writes t guarded by the version it was read at. Version is not refreshed; reload
// before saving again.
func (r *Repository) Save(ctx context.Context, t *Terminology) error {
	return r.write(ctx, t, docstore.IfVersion(t.Version))
}

func (r *Repository) write(ctx context.Context, t *Terminology, cond docstore.Precondition) error {
	if t.Codes == nil {
		t.Codes = []Coding{}
	}
	data, err := docstore.Encode(t)
	if err != nil {
		return err
	}
	_, err = r.collection().Document(t.ID).Set(ctx, data, cond)
	return err
}

// List returns all terminologies ordered by id.
func (r *Repository) List(ctx context.Context) ([]*Terminology, error) {
	var out []*Terminology
	err := r.collection().Stream(ctx, func(snap docstore.Snapshot) error {
		t, err := decode(snap)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// Delete purges every sub-collection, then the document.
func (r *Repository) Delete(ctx context.Context, id string) error {
	subs := make([]docstore.CollectionRef, 0, len(domain.TerminologySubCollections))
	for _, name := range domain.TerminologySubCollections {
		subs = append(subs, r.SubCollection(id, name))
	}
	if err := docstore.Purge(ctx, subs...); err != nil {
		return err
	}
	return r.collection().Document(id).Delete(ctx)
}

func decode(snap docstore.Snapshot) (*Terminology, error) {
	var t Terminology
	if err := snap.DataTo(&t); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrInvalidState, err)
	}
	if t.ID == "" {
		t.ID = snap.ID()
	}
	t.Version = snap.Version()
	return &t, nil
}
