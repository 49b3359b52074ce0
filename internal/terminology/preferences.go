package terminology

import (
	"context"
	"sort"
	"strings"

	"lexicon/internal/docstore"
	"lexicon/internal/provenance"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	"lexicon/pkg/requestcontext"
	pstrings "lexicon/pkg/platform/strings"
)

const (
	fieldAPIPreference = "api_preference"
	fieldReferences    = "references"
)

// GetOntoAPIPreference returns the ontology API preferences of target (a code or "self").
// Missing preferences yield an empty map.
func (s *Service) GetOntoAPIPreference(ctx context.Context, terminologyID, target string) (map[string][]string, error) {
	if target == "" {
		target = domain.SelfTarget
	}
	snap, err := s.repo.SubCollection(terminologyID, domain.SubOntoAPIPreference).
		Document(domain.StorageCode(target)).Get(ctx)
	if err != nil {
		return nil, dErrors.FromStorage(err, "failed to load api preference")
	}
	out := map[string][]string{}
	if !snap.Exists() {
		return out, nil
	}
	var doc struct {
		APIPreference map[string][]string `json:"api_preference"`
	}
	if err := snap.DataTo(&doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "malformed api preference")
	}
	for api, ontologies := range doc.APIPreference {
		out[api] = ontologies
	}
	return out, nil
}

// SetOntoAPIPreference replaces the preferences of target. A code target must be present.
func (s *Service) SetOntoAPIPreference(ctx context.Context, terminologyID, target string, prefs map[string][]string, editor string) error {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return err
	}
	if target == "" {
		target = domain.SelfTarget
	}
	t, err := s.GetTerminology(ctx, terminologyID)
	if err != nil {
		return err
	}
	if target != domain.SelfTarget && !t.HasCode(target) {
		return CodeNotPresent(target)
	}

	clean := make(map[string][]string, len(prefs))
	for api, ontologies := range prefs {
		api = strings.TrimSpace(api)
		if api == "" {
			return dErrors.New(dErrors.CodeLackingRequiredParameter, "api name is required").
				With("parameter", "api")
		}
		clean[api] = pstrings.DedupeAndTrim(ontologies)
	}

	old, err := s.GetOntoAPIPreference(ctx, terminologyID, target)
	if err != nil {
		return err
	}
	_, err = s.repo.SubCollection(terminologyID, domain.SubOntoAPIPreference).
		Document(domain.StorageCode(target)).
		Set(ctx, map[string]any{fieldAPIPreference: toAny(clean)})
	if err != nil {
		return dErrors.FromStorage(err, "failed to save api preference")
	}

	if err := s.ledger.Append(ctx, ref(terminologyID), target, provenance.Change{
		Action:   addOrEdit(len(old) > 0),
		Editor:   editor,
		OldValue: renderPreference(old),
		NewValue: renderPreference(clean),
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "api_preference_set", "terminology_id", terminologyID, "target", target)
	return nil
}

// GetPreferredTerminologies returns the terminologies preferred when mapping this one.
func (s *Service) GetPreferredTerminologies(ctx context.Context, terminologyID string) ([]Reference, error) {
	snap, err := s.preferredDoc(terminologyID).Get(ctx)
	if err != nil {
		return nil, dErrors.FromStorage(err, "failed to load preferred terminologies")
	}
	if !snap.Exists() {
		return []Reference{}, nil
	}
	var doc struct {
		References []Reference `json:"references"`
	}
	if err := snap.DataTo(&doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "malformed preferred terminologies")
	}
	if doc.References == nil {
		doc.References = []Reference{}
	}
	return doc.References, nil
}

// SetPreferredTerminologies replaces the preferred list. Every referenced terminology must
// exist; references may be given as "Terminology/{id}" or a bare id.
func (s *Service) SetPreferredTerminologies(ctx context.Context, terminologyID string, references []string, editor string) ([]Reference, error) {
	editor, err := requestcontext.RequireEditor(ctx, editor)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetTerminology(ctx, terminologyID); err != nil {
		return nil, err
	}
	refs := make([]Reference, 0, len(references))
	var rendered []string
	seen := make(map[string]struct{}, len(references))
	for _, r := range pstrings.DedupeAndTrim(references) {
		id := strings.TrimPrefix(r, domain.CollectionTerminology+"/")
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ok, err := s.repo.Exists(ctx, id)
		if err != nil {
			return nil, dErrors.FromStorage(err, "failed to load terminology")
		}
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "preferred terminology %q not found", r).With("id", id)
		}
		reference := domain.CollectionTerminology + "/" + id
		refs = append(refs, Reference{Reference: reference})
		rendered = append(rendered, reference)
	}

	old, err := s.GetPreferredTerminologies(ctx, terminologyID)
	if err != nil {
		return nil, err
	}
	data, err := docstore.Encode(map[string]any{fieldReferences: refs})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode preferred terminologies")
	}
	if _, err := s.preferredDoc(terminologyID).Set(ctx, data); err != nil {
		return nil, dErrors.FromStorage(err, "failed to save preferred terminologies")
	}

	oldRendered := make([]string, 0, len(old))
	for _, r := range old {
		oldRendered = append(oldRendered, r.Reference)
	}
	if err := s.ledger.Append(ctx, ref(terminologyID), domain.SelfTarget, provenance.Change{
		Action:   provenance.ActionEdit,
		Editor:   editor,
		OldValue: pstrings.FieldChange("preferred_terminology", strings.Join(oldRendered, pstrings.CodeSeparator)),
		NewValue: pstrings.FieldChange("preferred_terminology", strings.Join(rendered, pstrings.CodeSeparator)),
	}); err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *Service) preferredDoc(terminologyID string) docstore.DocumentRef {
	return s.repo.SubCollection(terminologyID, domain.SubPreferredTerminology).Document(domain.SelfTarget)
}

func addOrEdit(existed bool) provenance.Action {
	if existed {
		return provenance.ActionEdit
	}
	return provenance.ActionAdd
}

// renderPreference renders "api: o1,o2; api2: o3" with apis sorted.
func renderPreference(prefs map[string][]string) string {
	apis := make([]string, 0, len(prefs))
	for api := range prefs {
		apis = append(apis, api)
	}
	sort.Strings(apis)
	parts := make([]string, 0, len(apis))
	for _, api := range apis {
		parts = append(parts, pstrings.FieldChange(api, strings.Join(prefs[api], pstrings.CodeSeparator)))
	}
	return strings.Join(parts, "; ")
}

func toAny(prefs map[string][]string) map[string]any {
	out := make(map[string]any, len(prefs))
	for api, ontologies := range prefs {
		list := make([]any, 0, len(ontologies))
		for _, o := range ontologies {
			list = append(list, o)
		}
		out[api] = list
	}
	return out
}
