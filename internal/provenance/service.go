// Package provenance keeps the append-only audit trail of every mutation, one record per
// (resource, target), stored under {ResourceCollection}/{id}/provenance/{target}.
package provenance

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"lexicon/internal/docstore"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	"lexicon/pkg/platform/audit"
	"lexicon/pkg/platform/sentinel"
	"lexicon/pkg/requestcontext"
)

// DefaultMaxAttempts bounds the read-modify-write loop of Append. Appends commute, so a
// conflicting writer is simply retried.
const DefaultMaxAttempts = 3

// Service is the provenance ledger.
type Service struct {
	store       docstore.Store
	publisher   audit.Publisher
	logger      *slog.Logger
	metrics     *Metrics
	maxAttempts int
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

// WithPublisher sets the change feed. Events are published after the append is durable.
func WithPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(store docstore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	s := &Service{
		store:       store,
		publisher:   audit.Nop{},
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) collection(ref Ref) docstore.CollectionRef {
	return s.store.Collection(ref.Type.Collection()).Document(ref.ID).Collection(domain.SubProvenance)
}

func (s *Service) document(ref Ref, target string) docstore.DocumentRef {
	return s.collection(ref).Document(domain.StorageCode(target))
}

// Append records one change on target. A zero timestamp takes the request time; an empty
// editor takes the session user.
func (s *Service) Append(ctx context.Context, ref Ref, target string, change Change) error {
	if ref.ID == "" || target == "" {
		return dErrors.New(dErrors.CodeValidation, "provenance requires a resource id and target")
	}
	if change.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "provenance action is required")
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = requestcontext.Now(ctx)
	}
	change.Editor = requestcontext.Editor(ctx, change.Editor)

	doc := s.document(ref, target)
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		snap, rec, err := s.read(ctx, doc, target)
		if err != nil {
			return err
		}
		rec.Changes = append(rec.Changes, toStored(change))
		data, err := docstore.Encode(rec)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode provenance")
		}
		_, err = doc.Set(ctx, data, docstore.IfMatch(snap))
		if err == nil {
			lastErr = nil
			break
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append provenance")
		}
		lastErr = err
		if s.metrics != nil {
			s.metrics.AppendRetries.Inc()
		}
	}
	if lastErr != nil {
		return dErrors.Wrap(lastErr, dErrors.CodeConflict, "provenance record changed concurrently")
	}

	if s.metrics != nil {
		s.metrics.Appends.WithLabelValues(ref.Type.String(), string(change.Action)).Inc()
	}
	s.publish(ctx, ref, target, change)
	return nil
}

func (s *Service) publish(ctx context.Context, ref Ref, target string, change Change) {
	event := audit.Event{
		Timestamp:    change.Timestamp,
		ResourceType: ref.Type.String(),
		ResourceID:   ref.ID,
		Target:       target,
		Action:       string(change.Action),
		Editor:       change.Editor,
		OldValue:     change.OldValue,
		NewValue:     change.NewValue,
		RequestID:    requestcontext.RequestID(ctx),
	}.Prepare(requestcontext.Now(ctx))
	if err := s.publisher.Publish(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.Inc()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to publish change event",
				"error", err,
				"resource", ref.String(),
				"target", target,
				"action", string(change.Action),
			)
		}
	}
}

// Get returns the changes recorded on target sorted by timestamp; empty when none exist.
func (s *Service) Get(ctx context.Context, ref Ref, target string) ([]Change, error) {
	_, rec, err := s.read(ctx, s.document(ref, target), target)
	if err != nil {
		return nil, err
	}
	return sortedChanges(rec.Changes), nil
}

// GetAll returns every target's changes with display timestamps.
func (s *Service) GetAll(ctx context.Context, ref Ref) (map[string][]DisplayChange, error) {
	out := make(map[string][]DisplayChange)
	err := s.each(ctx, ref, func(target string, changes []Change) {
		display := make([]DisplayChange, 0, len(changes))
		for _, c := range changes {
			display = append(display, c.Display())
		}
		out[target] = display
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Timeline merges all targets into one list sorted by timestamp. Ties keep target order.
func (s *Service) Timeline(ctx context.Context, ref Ref) ([]TimelineEntry, error) {
	var entries []TimelineEntry
	err := s.each(ctx, ref, func(target string, changes []Change) {
		for _, c := range changes {
			entries = append(entries, TimelineEntry{Target: target, Change: c})
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func (s *Service) each(ctx context.Context, ref Ref, fn func(target string, changes []Change)) error {
	err := s.collection(ref).Stream(ctx, func(snap docstore.Snapshot) error {
		var rec record
		if err := snap.DataTo(&rec); err != nil {
			return err
		}
		target := rec.Target
		if target == "" {
			target = domain.DisplayCode(snap.ID())
		}
		fn(target, sortedChanges(rec.Changes))
		return nil
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read provenance")
	}
	return nil
}

// Delete removes the whole record of target.
func (s *Service) Delete(ctx context.Context, ref Ref, target string) error {
	if err := s.document(ref, target).Delete(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete provenance")
	}
	return nil
}

// DeleteAll removes every provenance record of the resource.
func (s *Service) DeleteAll(ctx context.Context, ref Ref) error {
	if err := docstore.Purge(ctx, s.collection(ref)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete provenance")
	}
	return nil
}

// Relocate moves the record of from to to, merging with any record already at to. Used when a
// code is renamed. A missing source is a no-op.
func (s *Service) Relocate(ctx context.Context, ref Ref, from, to string) error {
	// Same document: nothing to move.
	if domain.StorageCode(from) == domain.StorageCode(to) {
		return nil
	}
	src := s.document(ref, from)
	srcSnap, srcRec, err := s.read(ctx, src, from)
	if err != nil {
		return err
	}
	if !srcSnap.Exists() {
		return nil
	}

	dst := s.document(ref, to)
	dstSnap, dstRec, err := s.read(ctx, dst, to)
	if err != nil {
		return err
	}
	merged := make([]storedEntry, 0, len(dstRec.Changes)+len(srcRec.Changes))
	merged = append(merged, dstRec.Changes...)
	merged = append(merged, srcRec.Changes...)
	sort.SliceStable(merged, func(i, j int) bool {
		return timeOf(merged[i]).Before(timeOf(merged[j]))
	})
	data, err := docstore.Encode(record{Target: to, Changes: merged})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode provenance")
	}
	if _, err := dst.Set(ctx, data, docstore.IfMatch(dstSnap)); err != nil {
		return wrapWrite(err, "failed to relocate provenance")
	}
	if err := src.Delete(ctx, docstore.IfVersion(srcSnap.Version())); err != nil {
		return wrapWrite(err, "failed to relocate provenance")
	}
	return nil
}

func (s *Service) read(ctx context.Context, doc docstore.DocumentRef, target string) (docstore.Snapshot, record, error) {
	snap, err := doc.Get(ctx)
	if err != nil {
		return docstore.Snapshot{}, record{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read provenance")
	}
	rec := record{Target: target}
	if !snap.Exists() {
		return snap, rec, nil
	}
	if err := snap.DataTo(&rec); err != nil {
		return docstore.Snapshot{}, record{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed provenance record").
			With("path", snap.Path())
	}
	if strings.TrimSpace(rec.Target) == "" {
		rec.Target = target
	}
	return snap, rec, nil
}

func wrapWrite(err error, msg string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func timeOf(e storedEntry) time.Time { return time.Time(e.Timestamp) }

func sortedChanges(entries []storedEntry) []Change {
	out := make([]Change, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.change())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
