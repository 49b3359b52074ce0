// Package terminology manages controlled vocabularies and their codes.
package terminology

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"lexicon/internal/provenance"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	"lexicon/pkg/platform/sentinel"
	pstrings "lexicon/pkg/platform/strings"
	"lexicon/pkg/requestcontext"
)

// IDResolver assigns canonical ids.
type IDResolver interface {
	Resolve(ctx context.Context, rt domain.ResourceType, naturalKey, dom string) (string, error)
	DeleteByID(ctx context.Context, id string) error
}

// Ledger records provenance.
type Ledger interface {
	Append(ctx context.Context, ref provenance.Ref, target string, change provenance.Change) error
	Relocate(ctx context.Context, ref provenance.Ref, from, to string) error
}

// MappingCascade keeps mapping documents in step with code changes.
type MappingCascade interface {
	DeleteMappings(ctx context.Context, terminologyID, code, editor string) error
	RelocateMappings(ctx context.Context, terminologyID, from, to string) error
}

// Service implements the terminology operations.
type Service struct {
	repo     *Repository
	ids      IDResolver
	ledger   Ledger
	mappings MappingCascade
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(repo *Repository, ids IDResolver, ledger Ledger, mappings MappingCascade, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("terminology repository is required")
	}
	if ids == nil {
		return nil, errors.New("id resolver is required")
	}
	if ledger == nil {
		return nil, errors.New("provenance ledger is required")
	}
	if mappings == nil {
		return nil, errors.New("mapping cascade is required")
	}
	s := &Service{repo: repo, ids: ids, ledger: ledger, mappings: mappings}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func ref(id string) provenance.Ref {
	return provenance.Ref{Type: domain.ResourceTerminology, ID: id}
}

// CreateTerminology resolves the canonical id from the natural key (url, else name) and
// writes the terminology. An existing terminology is returned when in.Reuse is set and is a
// conflict otherwise.
func (s *Service) CreateTerminology(ctx context.Context, editor string, in CreateInput) (*Terminology, error) {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	if in.Name == "" {
		return nil, dErrors.New(dErrors.CodeLackingRequiredParameter, "terminology name is required").
			With("parameter", "name")
	}

	t := &Terminology{Name: in.Name, URL: in.URL, Description: in.Description, Codes: []Coding{}}
	for i, c := range in.Codes {
		code := strings.TrimSpace(c.Code)
		if code == "" {
			return nil, dErrors.New(dErrors.CodeLackingRequiredParameter, "code is required").
				With("parameter", "code").
				With("row", i)
		}
		if existing := t.IndexOfValid(code); existing >= 0 {
			return nil, codeAlreadyPresent(code, t.Codes[existing].Display)
		}
		t.Codes = append(t.Codes, newCoding(CodeInput{Code: code, Display: c.Display, System: c.System, Description: c.Description}, len(t.Codes)))
	}

	id, err := s.ids.Resolve(ctx, domain.ResourceTerminology, t.NaturalKey(), "")
	if err != nil {
		return nil, err
	}
	t.ID = id

	if err := s.repo.Create(ctx, t); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.FromStorage(err, "failed to create terminology")
		}
		if !in.Reuse {
			return nil, dErrors.New(dErrors.CodeConflict, "terminology already exists").With("id", id)
		}
		existing, err := s.repo.Load(ctx, id)
		if err != nil {
			return nil, dErrors.FromStorage(err, "failed to load terminology")
		}
		return existing, nil
	}

	if err := s.ledger.Append(ctx, ref(id), domain.SelfTarget, provenance.Change{
		Action:   provenance.ActionAdd,
		Editor:   editor,
		NewValue: t.Name,
	}); err != nil {
		return nil, err
	}
	s.logAudit(ctx, "terminology_created", "terminology_id", id, "codes", len(t.Codes))
	return t, nil
}

func (s *Service) GetTerminology(ctx context.Context, id string) (*Terminology, error) {
	t, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, dErrors.FromStorage(err, "failed to load terminology")
	}
	return t, nil
}

func (s *Service) ListTerminologies(ctx context.Context) ([]*Terminology, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, dErrors.FromStorage(err, "failed to list terminologies")
	}
	return list, nil
}

// UpdateTerminology edits name, url and description, recording one Edit per changed field.
func (s *Service) UpdateTerminology(ctx context.Context, id, editor string, in UpdateInput) (*Terminology, error) {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return nil, err
	}
	t, err := s.GetTerminology(ctx, id)
	if err != nil {
		return nil, err
	}

	type fieldEdit struct{ field, old, new string }
	var edits []fieldEdit
	apply := func(field string, dst *string, v *string) {
		if v == nil || *v == *dst {
			return
		}
		edits = append(edits, fieldEdit{field, *dst, *v})
		*dst = *v
	}
	apply("name", &t.Name, in.Name)
	apply("url", &t.URL, in.URL)
	apply("description", &t.Description, in.Description)
	if len(edits) == 0 {
		return t, nil
	}
	if strings.TrimSpace(t.Name) == "" {
		return nil, dErrors.New(dErrors.CodeLackingRequiredParameter, "terminology name is required").
			With("parameter", "name")
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, dErrors.FromStorage(err, "failed to update terminology")
	}
	for _, e := range edits {
		if err := s.ledger.Append(ctx, ref(id), domain.SelfTarget, provenance.Change{
			Action:   provenance.ActionEdit,
			Editor:   editor,
			OldValue: pstrings.FieldChange(e.field, e.old),
			NewValue: pstrings.FieldChange(e.field, e.new),
		}); err != nil {
			return nil, err
		}
	}
	s.logAudit(ctx, "terminology_updated", "terminology_id", id, "fields", len(edits))
	return t, nil
}

// DeleteTerminology hard-deletes the terminology, everything filed under it and its
// GlobalID.
func (s *Service) DeleteTerminology(ctx context.Context, id, editor string) error {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return err
	}
	if _, err := s.GetTerminology(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return dErrors.FromStorage(err, "failed to delete terminology")
	}
	if err := s.ids.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "terminology_deleted", "terminology_id", id, "editor", editor)
	return nil
}

// AddCode appends a code. A valid entry with the same code is CodeAlreadyPresent.
func (s *Service) AddCode(ctx context.Context, terminologyID, editor string, in CodeInput) (*Coding, error) {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return nil, err
	}
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		return nil, dErrors.New(dErrors.CodeLackingRequiredParameter, "code is required").With("parameter", "code")
	}
	t, err := s.GetTerminology(ctx, terminologyID)
	if err != nil {
		return nil, err
	}
	if i := t.IndexOfValid(in.Code); i >= 0 {
		return nil, codeAlreadyPresent(in.Code, t.Codes[i].Display)
	}

	coding := newCoding(in, len(t.Codes))
	t.Codes = append(t.Codes, coding)
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, dErrors.FromStorage(err, "failed to add code")
	}

	if err := s.ledger.Append(ctx, ref(t.ID), domain.SelfTarget, provenance.Change{
		Action: provenance.ActionAdd, Editor: editor, NewValue: in.Code,
	}); err != nil {
		return nil, err
	}
	if err := s.ledger.Append(ctx, ref(t.ID), in.Code, provenance.Change{
		Action: provenance.ActionAdd, Editor: editor, NewValue: in.Display,
	}); err != nil {
		return nil, err
	}
	s.logAudit(ctx, "code_added", "terminology_id", t.ID, "code", in.Code)
	return &coding, nil
}

// RemoveCode hard-removes every entry of code and soft-deletes its mappings.
func (s *Service) RemoveCode(ctx context.Context, terminologyID, code, editor string) error {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return err
	}
	t, err := s.GetTerminology(ctx, terminologyID)
	if err != nil {
		return err
	}
	kept := make([]Coding, 0, len(t.Codes))
	for _, c := range t.Codes {
		if c.Code != code {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(t.Codes) {
		return CodeNotPresent(code)
	}
	t.Codes = kept
	t.rerank()

	if err := s.repo.Save(ctx, t); err != nil {
		return dErrors.FromStorage(err, "failed to remove code")
	}
	if err := s.mappings.DeleteMappings(ctx, t.ID, code, editor); err != nil {
		return err
	}
	for _, target := range []string{domain.SelfTarget, code} {
		if err := s.ledger.Append(ctx, ref(t.ID), target, provenance.Change{
			Action: provenance.ActionRemove, Editor: editor, OldValue: code,
		}); err != nil {
			return err
		}
	}
	s.logAudit(ctx, "code_removed", "terminology_id", t.ID, "code", code)
	return nil
}

// RenameCode updates a code's entry and, when the code itself changes, moves its mapping and
// provenance records to the new key. Returns false when oldCode is not present.
func (s *Service) RenameCode(ctx context.Context, terminologyID, oldCode, newCode, newDisplay, newDescription, editor string) (bool, error) {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return false, err
	}
	newCode = strings.TrimSpace(newCode)
	if newCode == "" {
		newCode = oldCode
	}
	t, err := s.GetTerminology(ctx, terminologyID)
	if err != nil {
		return false, err
	}
	i := t.IndexOfValid(oldCode)
	if i < 0 {
		return false, nil
	}
	if newCode != oldCode {
		if j := t.IndexOfValid(newCode); j >= 0 {
			return false, codeAlreadyPresent(newCode, t.Codes[j].Display)
		}
	}

	before := t.Codes[i]
	t.Codes[i].Code = newCode
	t.Codes[i].Display = newDisplay
	t.Codes[i].Description = newDescription
	if err := s.repo.Save(ctx, t); err != nil {
		return false, dErrors.FromStorage(err, "failed to rename code")
	}

	if domain.StorageCode(newCode) != domain.StorageCode(oldCode) {
		if err := s.mappings.RelocateMappings(ctx, t.ID, oldCode, newCode); err != nil {
			return false, err
		}
		if err := s.ledger.Relocate(ctx, ref(t.ID), oldCode, newCode); err != nil {
			return false, err
		}
	}
	if err := s.ledger.Append(ctx, ref(t.ID), newCode, provenance.Change{
		Action:   provenance.ActionEdit,
		Editor:   editor,
		OldValue: describe(before),
		NewValue: describe(t.Codes[i]),
	}); err != nil {
		return false, err
	}
	s.logAudit(ctx, "code_renamed", "terminology_id", t.ID, "old_code", oldCode, "new_code", newCode)
	return true, nil
}

// SetCodeValidity soft-deletes or restores a code. Restoring fails with CodeAlreadyPresent when
// another valid entry already uses the code.
func (s *Service) SetCodeValidity(ctx context.Context, terminologyID, code string, valid bool, editor string) error {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return err
	}
	t, err := s.GetTerminology(ctx, terminologyID)
	if err != nil {
		return err
	}
	var i int
	if valid {
		if j := t.IndexOfValid(code); j >= 0 {
			return codeAlreadyPresent(code, t.Codes[j].Display)
		}
		i = t.IndexOfInvalid(code)
	} else {
		i = t.IndexOfValid(code)
	}
	if i < 0 {
		return CodeNotPresent(code)
	}

	t.Codes[i].SetValid(valid)
	if err := s.repo.Save(ctx, t); err != nil {
		return dErrors.FromStorage(err, "failed to update code validity")
	}
	if err := s.ledger.Append(ctx, ref(t.ID), code, provenance.Change{
		Action:   provenance.ActionEdit,
		Editor:   editor,
		OldValue: pstrings.FieldChange("valid", strconv.FormatBool(!valid)),
		NewValue: pstrings.FieldChange("valid", strconv.FormatBool(valid)),
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "code_validity_changed", "terminology_id", t.ID, "code", code, "valid", valid)
	return nil
}

func newCoding(in CodeInput, rank int) Coding {
	c := Coding{
		Code:        in.Code,
		Display:     in.Display,
		System:      in.System,
		Description: in.Description,
		Rank:        rank,
	}
	c.SetValid(true)
	return c
}

func describe(c Coding) string {
	if c.Display == "" {
		return c.Code
	}
	return c.Code + ": " + c.Display
}

func codeAlreadyPresent(code, display string) error {
	return dErrors.Newf(dErrors.CodeCodeAlreadyPresent, "code %q is already present", code).
		With("code", code).
		With("existing_display", display)
}

// CodeNotPresent reports a code missing from a terminology.
func CodeNotPresent(code string) error {
	return dErrors.Newf(dErrors.CodeCodeNotPresent, "code %q is not present", code).
		With("code", code).
		With("storage_code", domain.StorageCode(code))
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
