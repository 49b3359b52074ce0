// Package identity assigns canonical ids to entities keyed by a natural key, so repeated
// submissions of the same entity resolve to the same id.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"lexicon/internal/docstore"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	"lexicon/pkg/platform/sentinel"
	"lexicon/pkg/requestcontext"
)

// IDGenerator mints a new canonical id for a resource type.
type IDGenerator func(rt domain.ResourceType) string

// RandomID returns "{prefix}-{12 hex chars}".
func RandomID(rt domain.ResourceType) string {
	return rt.IDPrefix() + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Service resolves and deletes GlobalID records.
type Service struct {
	store   docstore.Store
	newID   IDGenerator
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIDGenerator replaces RandomID, for deterministic tests.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New constructs a Service.
func New(store docstore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	s := &Service{store: store, newID: RandomID}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) collection() docstore.CollectionRef {
	return s.store.Collection(domain.CollectionGlobalID)
}

// RecordID derives the GlobalID document id from the tuple, so concurrent creators of the
// same tuple write to the same document and only one create-only write can succeed.
func RecordID(rt domain.ResourceType, dom, naturalKey string) string {
	sum := sha256.Sum256([]byte(string(rt) + "\x00" + dom + "\x00" + naturalKey))
	return hex.EncodeToString(sum[:20])
}

// Resolve returns the canonical id for the tuple, minting and persisting one if none exists.
func (s *Service) Resolve(ctx context.Context, rt domain.ResourceType, naturalKey, dom string) (string, error) {
	naturalKey = strings.TrimSpace(naturalKey)
	if naturalKey == "" {
		return "", dErrors.New(dErrors.CodeValidation, "natural key is required")
	}

	rec, found, err := s.find(ctx, rt, naturalKey, dom)
	if err != nil {
		return "", err
	}
	if found {
		s.metrics.observe(rt.String(), "existing")
		return rec.ID, nil
	}

	docID := RecordID(rt, dom, naturalKey)
	rec = Record{
		ID:           s.newID(rt),
		ResourceType: rt,
		Domain:       dom,
		Key:          naturalKey,
		StorageID:    docID,
		CreatedAt:    requestcontext.Now(ctx),
	}
	data, err := docstore.Encode(rec)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode global id")
	}
	if _, err := s.collection().Document(docID).Set(ctx, data, docstore.MustNotExist()); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist global id")
		}
		winner, ok, err := s.load(ctx, docID)
		if err != nil {
			return "", err
		}
		if !ok {
			// The winner was deleted between our failed create and the re-read.
			return "", dErrors.New(dErrors.CodeConflict, "global id changed concurrently")
		}
		s.metrics.observe(rt.String(), "race_lost")
		return winner.ID, nil
	}

	s.metrics.observe(rt.String(), "minted")
	s.logAudit(ctx, "global_id_minted",
		"resource_type", rt.String(),
		"resource_id", rec.ID,
		"domain", dom,
	)
	return rec.ID, nil
}

// Lookup returns the canonical id without minting one.
func (s *Service) Lookup(ctx context.Context, rt domain.ResourceType, naturalKey, dom string) (string, bool, error) {
	rec, found, err := s.find(ctx, rt, strings.TrimSpace(naturalKey), dom)
	if err != nil || !found {
		return "", false, err
	}
	return rec.ID, true, nil
}

// Delete removes every record of the tuple, including legacy records stored under other ids.
func (s *Service) Delete(ctx context.Context, rt domain.ResourceType, naturalKey, dom string) error {
	naturalKey = strings.TrimSpace(naturalKey)
	if err := s.collection().Document(RecordID(rt, dom, naturalKey)).Delete(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete global id")
	}
	legacy, err := s.collection().Find(ctx, tupleQuery(rt, naturalKey, dom))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to find global ids")
	}
	if err := s.deleteAll(ctx, legacy); err != nil {
		return err
	}
	s.logAudit(ctx, "global_id_deleted", "resource_type", rt.String(), "domain", dom)
	return nil
}

// DeleteByID removes every record naming id. Used when an entity is hard-deleted by id.
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	snaps, err := s.collection().Find(ctx, docstore.Query{}.Where("id", id))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to find global ids")
	}
	if err := s.deleteAll(ctx, snaps); err != nil {
		return err
	}
	s.logAudit(ctx, "global_id_deleted", "resource_id", id)
	return nil
}

func (s *Service) deleteAll(ctx context.Context, snaps []docstore.Snapshot) error {
	for _, snap := range snaps {
		if err := s.collection().Document(snap.ID()).Delete(ctx); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete global id")
		}
	}
	return nil
}

func tupleQuery(rt domain.ResourceType, naturalKey, dom string) docstore.Query {
	return docstore.Query{}.
		Where("resource_type", string(rt)).
		Where("domain", dom).
		Where("key", naturalKey).
		Order("created_at", docstore.Asc)
}

// find checks the deterministic document first, then records written under other ids.
func (s *Service) find(ctx context.Context, rt domain.ResourceType, naturalKey, dom string) (Record, bool, error) {
	rec, ok, err := s.load(ctx, RecordID(rt, dom, naturalKey))
	if err != nil || ok {
		return rec, ok, err
	}
	snaps, err := s.collection().Find(ctx, tupleQuery(rt, naturalKey, dom).Limit(1))
	if err != nil {
		return Record{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find global id")
	}
	if len(snaps) == 0 {
		return Record{}, false, nil
	}
	if err := snaps[0].DataTo(&rec); err != nil {
		return Record{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "malformed global id record")
	}
	return rec, true, nil
}

func (s *Service) load(ctx context.Context, docID string) (Record, bool, error) {
	snap, err := s.collection().Document(docID).Get(ctx)
	if err != nil {
		return Record{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load global id")
	}
	if !snap.Exists() {
		return Record{}, false, nil
	}
	var rec Record
	if err := snap.DataTo(&rec); err != nil {
		return Record{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "malformed global id record")
	}
	return rec, true, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
