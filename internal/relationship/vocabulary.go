// Package relationship holds the controlled vocabulary of mapping relationships.
//
// The vocabulary is read from a reference terminology and cached per process. With a zero TTL
// it is loaded once; a positive TTL reloads it on the first validation after expiry. Edits to
// the reference terminology are invisible until then, or until Refresh is called.
package relationship

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	dErrors "lexicon/pkg/domain-errors"
)

// Field is the mapping attribute validated against the vocabulary.
const Field = "mapping_relationship"

// Loader reads the allowed relationship codes.
type Loader interface {
	Load(ctx context.Context) ([]string, error)
}

// Vocabulary caches the allowed codes. Safe for concurrent use.
type Vocabulary struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	flight singleflight.Group

	mu       sync.RWMutex
	codes    map[string]struct{}
	loaded   bool
	loadedAt time.Time
}

type Option func(*Vocabulary)

// WithTTL sets the staleness window. Zero loads once.
func WithTTL(ttl time.Duration) Option {
	return func(v *Vocabulary) {
		v.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Vocabulary) {
		v.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Vocabulary) {
		v.now = now
	}
}

func NewVocabulary(loader Loader, opts ...Option) (*Vocabulary, error) {
	if loader == nil {
		return nil, errors.New("relationship loader is required")
	}
	v := &Vocabulary{loader: loader, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Load fills the cache unless it is already loaded and fresh.
func (v *Vocabulary) Load(ctx context.Context) error {
	if v.fresh() {
		return nil
	}
	_, err, _ := v.flight.Do("load", func() (any, error) {
		return nil, v.Refresh(ctx)
	})
	return err
}

// Refresh reloads the cache unconditionally. On failure the previous codes stay in place.
func (v *Vocabulary) Refresh(ctx context.Context) error {
	codes, err := v.loader.Load(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relationship vocabulary")
	}
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}

	v.mu.Lock()
	v.codes = set
	v.loaded = true
	v.loadedAt = v.now()
	v.mu.Unlock()

	if v.logger != nil {
		v.logger.InfoContext(ctx, "relationship vocabulary loaded", "codes", len(set))
	}
	return nil
}

func (v *Vocabulary) fresh() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.loaded {
		return false
	}
	return v.ttl <= 0 || v.now().Sub(v.loadedAt) < v.ttl
}

// Allowed returns the codes sorted.
func (v *Vocabulary) Allowed(ctx context.Context) ([]string, error) {
	if err := v.Load(ctx); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.codes))
	for c := range v.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Validate accepts the empty relationship and any code of the vocabulary. Anything else is
// InvalidEnumValue naming the value and the allowed set.
func (v *Vocabulary) Validate(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	if err := v.Load(ctx); err != nil {
		return err
	}
	v.mu.RLock()
	_, ok := v.codes[value]
	v.mu.RUnlock()
	if ok {
		return nil
	}
	allowed, err := v.Allowed(ctx)
	if err != nil {
		return err
	}
	return dErrors.InvalidEnumValue(Field, value, allowed)
}
