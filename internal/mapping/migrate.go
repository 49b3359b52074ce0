package mapping

import "context"

// StampValidity marks mapped targets that predate the validity flag as valid and returns how
// many targets changed across all mapping documents of the terminology.
func (s *Service) StampValidity(ctx context.Context, terminologyID string, dryRun bool) (int, error) {
	docs, err := s.all(ctx, terminologyID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, l := range docs {
		stamped := 0
		for i := range l.doc.Codes {
			if l.doc.Codes[i].Valid == nil {
				l.doc.Codes[i].SetValid(true)
				stamped++
			}
		}
		if stamped == 0 {
			continue
		}
		total += stamped
		if dryRun {
			continue
		}
		if err := s.write(ctx, s.collection(terminologyID).Document(l.snap.ID()), l.doc, l.snap); err != nil {
			return total - stamped, err
		}
	}
	if total > 0 && !dryRun {
		s.logAudit(ctx, "mapping_validity_stamped", "terminology_id", terminologyID, "targets", total)
	}
	return total, nil
}
