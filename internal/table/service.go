// Package table manages data-dictionary tables. Each table owns a shadow terminology with one
// code per variable, so variables can be mapped like any other code.
package table

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"lexicon/internal/docstore"
	"lexicon/internal/provenance"
	"lexicon/internal/terminology"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	"lexicon/pkg/platform/sentinel"
	"lexicon/pkg/requestcontext"
)

// ShadowSuffix turns a table natural key into its shadow terminology's.
const ShadowSuffix = ".terminology"

type IDResolver interface {
	Resolve(ctx context.Context, rt domain.ResourceType, naturalKey, dom string) (string, error)
	DeleteByID(ctx context.Context, id string) error
}

type Terminologies interface {
	CreateTerminology(ctx context.Context, editor string, in terminology.CreateInput) (*terminology.Terminology, error)
	DeleteTerminology(ctx context.Context, id, editor string) error
}

type Ledger interface {
	Append(ctx context.Context, ref provenance.Ref, target string, change provenance.Change) error
}

type Service struct {
	store         docstore.Store
	ids           IDResolver
	terminologies Terminologies
	ledger        Ledger
	logger        *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store docstore.Store, ids IDResolver, terminologies Terminologies, ledger Ledger, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("document store is required")
	case ids == nil:
		return nil, errors.New("id resolver is required")
	case terminologies == nil:
		return nil, errors.New("terminology service is required")
	case ledger == nil:
		return nil, errors.New("provenance ledger is required")
	}
	s := &Service{store: store, ids: ids, terminologies: terminologies, ledger: ledger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) document(id string) docstore.DocumentRef {
	return s.store.Collection(domain.CollectionTable).Document(id)
}

// CreateTable validates every variable, resolves the table id, creates the shadow terminology
// and writes the table.
func (s *Service) CreateTable(ctx context.Context, editor string, in CreateInput) (*Table, error) {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	if in.Name == "" {
		return nil, lacking("name", -1)
	}
	codes := make([]terminology.CodeInput, 0, len(in.Variables))
	for i, v := range in.Variables {
		if strings.TrimSpace(v.Name) == "" {
			return nil, lacking("name", i)
		}
		if strings.TrimSpace(v.DataType) == "" {
			return nil, lacking("data_type", i)
		}
		in.Variables[i].Name = strings.TrimSpace(v.Name)
		codes = append(codes, terminology.CodeInput{Code: in.Variables[i].Name, Display: v.Description})
	}

	key := terminology.NaturalKey(in.URL, in.Name)
	id, err := s.ids.Resolve(ctx, domain.ResourceTable, key, "")
	if err != nil {
		return nil, err
	}
	if snap, err := s.document(id).Get(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load table")
	} else if snap.Exists() {
		return nil, dErrors.New(dErrors.CodeConflict, "table already exists").With("id", id)
	}

	shadow, err := s.terminologies.CreateTerminology(ctx, editor, terminology.CreateInput{
		Name:        in.Name,
		URL:         key + ShadowSuffix,
		Description: in.Description,
		Codes:       codes,
		Reuse:       true,
	})
	if err != nil {
		return nil, err
	}

	t := &Table{
		ID:          id,
		Name:        in.Name,
		URL:         in.URL,
		Description: in.Description,
		Terminology: terminology.Reference{Reference: shadow.Reference()},
		Variables:   in.Variables,
	}
	if t.Variables == nil {
		t.Variables = []Variable{}
	}
	data, err := docstore.Encode(t)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode table")
	}
	if _, err := s.document(id).Set(ctx, data, docstore.MustNotExist()); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "table already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create table")
	}

	if err := s.ledger.Append(ctx, provenance.Ref{Type: domain.ResourceTable, ID: id}, domain.SelfTarget, provenance.Change{
		Action:   provenance.ActionAdd,
		Editor:   editor,
		NewValue: t.Name,
	}); err != nil {
		return nil, err
	}
	s.logAudit(ctx, "table_created", "table_id", id, "terminology_id", shadow.ID, "variables", len(t.Variables))
	return t, nil
}

func (s *Service) GetTable(ctx context.Context, id string) (*Table, error) {
	snap, err := s.document(id).Get(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load table")
	}
	if !snap.Exists() {
		return nil, dErrors.New(dErrors.CodeNotFound, "table not found").With("id", id)
	}
	var t Table
	if err := snap.DataTo(&t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "malformed table")
	}
	return &t, nil
}

// DeleteTable removes the table, its provenance, its shadow terminology and the GlobalIDs.
func (s *Service) DeleteTable(ctx context.Context, id, editor string) error {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return err
	}
	t, err := s.GetTable(ctx, id)
	if err != nil {
		return err
	}
	if termID := t.TerminologyID(); termID != "" {
		if err := s.terminologies.DeleteTerminology(ctx, termID, editor); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return err
		}
	}
	if err := docstore.Purge(ctx, s.document(id).Collection(domain.SubProvenance)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete table provenance")
	}
	if err := s.document(id).Delete(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete table")
	}
	if err := s.ids.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "table_deleted", "table_id", id, "editor", editor)
	return nil
}

func lacking(parameter string, row int) error {
	err := dErrors.Newf(dErrors.CodeLackingRequiredParameter, "%s is required", parameter).
		With("parameter", parameter)
	if row >= 0 {
		err = err.With("row", row)
	}
	return err
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
