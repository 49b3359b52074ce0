package terminology

import (
	"context"

	dErrors "lexicon/pkg/domain-errors"
)

// StampValidity marks every coding that predates the validity flag as valid and returns how
// many codings changed. Codings already carrying the flag are left alone, so the stamp is
// safe to rerun. No provenance is recorded.
func (s *Service) StampValidity(ctx context.Context, id string, dryRun bool) (int, error) {
	t, err := s.GetTerminology(ctx, id)
	if err != nil {
		return 0, err
	}
	stamped := 0
	for i := range t.Codes {
		if t.Codes[i].Valid == nil {
			t.Codes[i].SetValid(true)
			stamped++
		}
	}
	if stamped == 0 || dryRun {
		return stamped, nil
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return 0, dErrors.FromStorage(err, "failed to stamp terminology")
	}
	s.logAudit(ctx, "terminology_validity_stamped", "terminology_id", id, "codes", stamped)
	return stamped, nil
}
