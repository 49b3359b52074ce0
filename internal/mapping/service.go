// Package mapping maintains the per-code mapping sets of a terminology.
package mapping

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"lexicon/internal/docstore"
	"lexicon/internal/provenance"
	"lexicon/internal/terminology"
	"lexicon/internal/userinput"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	pstrings "lexicon/pkg/platform/strings"
	"lexicon/pkg/requestcontext"
)

// CodeSource loads terminologies to check source codes.
type CodeSource interface {
	Load(ctx context.Context, id string) (*terminology.Terminology, error)
}

// RelationshipValidator checks mapping relationships against the reference vocabulary.
type RelationshipValidator interface {
	Validate(ctx context.Context, value string) error
}

// Ledger records provenance.
type Ledger interface {
	Append(ctx context.Context, ref provenance.Ref, target string, change provenance.Change) error
}

// UserInputSummaries aggregates user input for mapping reads.
type UserInputSummaries interface {
	Summary(ctx context.Context, terminologyID, code, mapped string) (userinput.Summary, error)
}

type Service struct {
	codes         CodeSource
	store         docstore.Store
	relationships RelationshipValidator
	ledger        Ledger
	userInput     UserInputSummaries
	logger        *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithUserInput enables ReadOptions.WithUserInput.
func WithUserInput(summaries UserInputSummaries) Option {
	return func(s *Service) {
		s.userInput = summaries
	}
}

func New(codes CodeSource, store docstore.Store, relationships RelationshipValidator, ledger Ledger, opts ...Option) (*Service, error) {
	if codes == nil {
		return nil, errors.New("code source is required")
	}
	if store == nil {
		return nil, errors.New("document store is required")
	}
	if relationships == nil {
		return nil, errors.New("relationship validator is required")
	}
	if ledger == nil {
		return nil, errors.New("provenance ledger is required")
	}
	s := &Service{codes: codes, store: store, relationships: relationships, ledger: ledger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func ref(id string) provenance.Ref {
	return provenance.Ref{Type: domain.ResourceTerminology, ID: id}
}

func (s *Service) collection(terminologyID string) docstore.CollectionRef {
	return s.store.Collection(domain.CollectionTerminology).Document(terminologyID).Collection(domain.SubMappings)
}

func (s *Service) document(terminologyID, code string) docstore.DocumentRef {
	return s.collection(terminologyID).Document(domain.StorageCode(code))
}

func (s *Service) terminology(ctx context.Context, id string) (*terminology.Terminology, error) {
	t, err := s.codes.Load(ctx, id)
	if err != nil {
		return nil, dErrors.FromStorage(err, "failed to load terminology")
	}
	return t, nil
}

// SetMapping replaces the targets of code. Relationships are validated before anything is
// written; every target is stamped valid.
func (s *Service) SetMapping(ctx context.Context, terminologyID, code string, targets []CodingMapping, editor string) ([]CodingMapping, error) {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return nil, err
	}
	for i, tgt := range targets {
		if strings.TrimSpace(tgt.Code) == "" {
			return nil, dErrors.New(dErrors.CodeLackingRequiredParameter, "target code is required").
				With("parameter", "code").
				With("row", i)
		}
		if err := s.relationships.Validate(ctx, tgt.MappingRelationship); err != nil {
			return nil, err
		}
	}

	t, err := s.terminology(ctx, terminologyID)
	if err != nil {
		return nil, err
	}
	if !t.HasCode(code) {
		return nil, terminology.CodeNotPresent(code)
	}

	doc := s.document(terminologyID, code)
	snap, prior, err := s.read(ctx, doc)
	if err != nil {
		return nil, err
	}

	next := document{Code: code, Codes: make([]CodingMapping, 0, len(targets))}
	newCodes := make([]string, 0, len(targets))
	for i, tgt := range targets {
		tgt.Code = strings.TrimSpace(tgt.Code)
		tgt.FTDCode = domain.StorageCode(tgt.Code)
		tgt.Rank = i
		tgt.UserInput = nil
		tgt.SetValid(true)
		next.Codes = append(next.Codes, tgt)
		newCodes = append(newCodes, tgt.Code)
	}
	if err := s.write(ctx, doc, next, snap); err != nil {
		return nil, err
	}

	action := provenance.ActionAdd
	if snap.Exists() {
		action = provenance.ActionEdit
	}
	if err := s.ledger.Append(ctx, ref(terminologyID), code, provenance.Change{
		Action:   action,
		Editor:   editor,
		OldValue: pstrings.JoinCodes(prior.validCodes()),
		NewValue: pstrings.JoinCodes(newCodes),
	}); err != nil {
		return nil, err
	}
	s.logAudit(ctx, "mapping_set", "terminology_id", terminologyID, "code", code, "targets", len(newCodes))
	return next.Codes, nil
}

// GetMappings returns the targets of code. Soft-deleted targets are hidden unless requested;
// a target without a validity flag counts as valid.
func (s *Service) GetMappings(ctx context.Context, terminologyID, code string, opts ReadOptions) ([]CodingMapping, error) {
	if _, err := s.terminology(ctx, terminologyID); err != nil {
		return nil, err
	}
	_, doc, err := s.read(ctx, s.document(terminologyID, code))
	if err != nil {
		return nil, err
	}
	return s.view(ctx, terminologyID, code, doc.Codes, opts)
}

// ListMappings returns the targets of every code that has any, keyed by source code.
func (s *Service) ListMappings(ctx context.Context, terminologyID string, opts ReadOptions) (map[string][]CodingMapping, error) {
	if _, err := s.terminology(ctx, terminologyID); err != nil {
		return nil, err
	}
	docs, err := s.all(ctx, terminologyID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]CodingMapping, len(docs))
	for _, d := range docs {
		targets, err := s.view(ctx, terminologyID, d.doc.Code, d.doc.Codes, opts)
		if err != nil {
			return nil, err
		}
		if len(targets) > 0 {
			out[d.doc.Code] = targets
		}
	}
	return out, nil
}

// DeleteMappings soft-deletes every target of code. The code need not be present in the
// terminology, so it also serves as the cascade of a code removal.
func (s *Service) DeleteMappings(ctx context.Context, terminologyID, code, editor string) error {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return err
	}
	doc := s.document(terminologyID, code)
	snap, current, err := s.read(ctx, doc)
	if err != nil {
		return err
	}
	removed := current.validCodes()
	if snap.Exists() {
		if err := s.write(ctx, doc, invalidate(current), snap); err != nil {
			return err
		}
	}
	if err := s.ledger.Append(ctx, ref(terminologyID), code, provenance.Change{
		Action:   provenance.ActionSoftDeleteMapping,
		Editor:   editor,
		OldValue: pstrings.JoinCodes(removed),
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "mappings_deleted", "terminology_id", terminologyID, "code", code, "targets", len(removed))
	return nil
}

// DeleteAllMappings soft-deletes the targets of every code of the terminology.
func (s *Service) DeleteAllMappings(ctx context.Context, terminologyID, editor string) error {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return err
	}
	if _, err := s.terminology(ctx, terminologyID); err != nil {
		return err
	}
	docs, err := s.all(ctx, terminologyID)
	if err != nil {
		return err
	}
	var sources []string
	for _, d := range docs {
		if len(d.doc.validCodes()) == 0 {
			continue
		}
		if err := s.write(ctx, s.collection(terminologyID).Document(d.snap.ID()), invalidate(d.doc), d.snap); err != nil {
			return err
		}
		sources = append(sources, d.doc.Code)
	}
	if err := s.ledger.Append(ctx, ref(terminologyID), domain.SelfTarget, provenance.Change{
		Action:   provenance.ActionSoftDeleteAllMappings,
		Editor:   editor,
		OldValue: pstrings.JoinCodes(sources),
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "all_mappings_deleted", "terminology_id", terminologyID, "codes", len(sources))
	return nil
}

// RelocateMappings moves the mapping document of from to to after a code rename. Targets
// already mapped under to are kept; a missing source is a no-op.
func (s *Service) RelocateMappings(ctx context.Context, terminologyID, from, to string) error {
	// Same document: nothing to move.
	if domain.StorageCode(from) == domain.StorageCode(to) {
		return nil
	}
	src := s.document(terminologyID, from)
	srcSnap, srcDoc, err := s.read(ctx, src)
	if err != nil {
		return err
	}
	if !srcSnap.Exists() {
		return nil
	}
	dst := s.document(terminologyID, to)
	dstSnap, dstDoc, err := s.read(ctx, dst)
	if err != nil {
		return err
	}

	merged := document{Code: to, Codes: dstDoc.Codes}
	seen := make(map[string]struct{}, len(merged.Codes))
	for _, c := range merged.Codes {
		seen[c.Code] = struct{}{}
	}
	for _, c := range srcDoc.Codes {
		if _, dup := seen[c.Code]; dup {
			continue
		}
		c.Rank = len(merged.Codes)
		merged.Codes = append(merged.Codes, c)
	}
	if err := s.write(ctx, dst, merged, dstSnap); err != nil {
		return err
	}
	if err := src.Delete(ctx, docstore.IfVersion(srcSnap.Version())); err != nil {
		return dErrors.FromStorage(err, "failed to relocate mappings")
	}
	s.logAudit(ctx, "mappings_relocated", "terminology_id", terminologyID, "from", from, "to", to)
	return nil
}

func (s *Service) view(ctx context.Context, terminologyID, code string, codes []CodingMapping, opts ReadOptions) ([]CodingMapping, error) {
	out := make([]CodingMapping, 0, len(codes))
	for _, c := range codes {
		if !opts.IncludeInvalid && !c.IsValid() {
			continue
		}
		if opts.WithUserInput && s.userInput != nil {
			sum, err := s.userInput.Summary(ctx, terminologyID, code, c.Code)
			if err != nil {
				return nil, err
			}
			c.UserInput = &sum
		}
		out = append(out, c)
	}
	return out, nil
}

type loaded struct {
	snap docstore.Snapshot
	doc  document
}

func (s *Service) all(ctx context.Context, terminologyID string) ([]loaded, error) {
	var out []loaded
	err := s.collection(terminologyID).Stream(ctx, func(snap docstore.Snapshot) error {
		var doc document
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Code == "" {
			doc.Code = domain.DisplayCode(snap.ID())
		}
		out = append(out, loaded{snap: snap, doc: doc})
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read mappings")
	}
	return out, nil
}

func (s *Service) read(ctx context.Context, d docstore.DocumentRef) (docstore.Snapshot, document, error) {
	snap, err := d.Get(ctx)
	if err != nil {
		return docstore.Snapshot{}, document{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read mappings")
	}
	var doc document
	if snap.Exists() {
		if err := snap.DataTo(&doc); err != nil {
			return docstore.Snapshot{}, document{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed mapping document").
				With("path", snap.Path())
		}
	}
	return snap, doc, nil
}

func (s *Service) write(ctx context.Context, d docstore.DocumentRef, doc document, read docstore.Snapshot) error {
	for i := range doc.Codes {
		doc.Codes[i].UserInput = nil
	}
	if doc.Codes == nil {
		doc.Codes = []CodingMapping{}
	}
	data, err := docstore.Encode(doc)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode mappings")
	}
	if _, err := d.Set(ctx, data, docstore.IfMatch(read)); err != nil {
		return dErrors.FromStorage(err, "failed to save mappings")
	}
	return nil
}

func invalidate(doc document) document {
	codes := make([]CodingMapping, len(doc.Codes))
	copy(codes, doc.Codes)
	for i := range codes {
		codes[i].SetValid(false)
	}
	doc.Codes = codes
	return doc
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
