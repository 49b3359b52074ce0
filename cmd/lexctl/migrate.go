package main

import (
	"context"

	"github.com/spf13/cobra"

	"lexicon/internal/engine"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Data migrations",
	}

	var dryRun bool
	stamp := &cobra.Command{
		Use:   "stamp-valid",
		Short: "Mark codings and mapped targets without a validity flag as valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *engine.Engine) error {
				report, err := e.StampValidity(ctx, dryRun)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"dry_run": dryRun,
					"codes":   report.Codes,
					"targets": report.Targets,
				})
			})
		},
	}
	stamp.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	cmd.AddCommand(stamp)
	return cmd
}
