package engine

import (
	"context"
	"fmt"
)

// StampReport counts what StampValidity changed, per terminology id.
type StampReport struct {
	Codes   map[string]int
	Targets map[string]int
}

// StampValidity backfills the validity flag on codings and mapped targets written before
// soft deletion existed. With dryRun set nothing is written and the report shows what would change.
func (e *Engine) StampValidity(ctx context.Context, dryRun bool) (StampReport, error) {
	report := StampReport{Codes: map[string]int{}, Targets: map[string]int{}}
	list, err := e.Terminologies.ListTerminologies(ctx)
	if err != nil {
		return report, err
	}
	for _, t := range list {
		codes, err := e.Terminologies.StampValidity(ctx, t.ID, dryRun)
		if err != nil {
			return report, fmt.Errorf("stamp codes of %s: %w", t.ID, err)
		}
		targets, err := e.Mappings.StampValidity(ctx, t.ID, dryRun)
		if err != nil {
			return report, fmt.Errorf("stamp mappings of %s: %w", t.ID, err)
		}
		if codes > 0 {
			report.Codes[t.ID] = codes
		}
		if targets > 0 {
			report.Targets[t.ID] = targets
		}
	}
	e.logger.InfoContext(ctx, "validity stamp finished", "dry_run", dryRun,
		"terminologies", len(list), "codes", sum(report.Codes), "targets", sum(report.Targets))
	return report, nil
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
