package main

import (
	"context"

	"github.com/spf13/cobra"

	"lexicon/internal/engine"
)

func newSeedCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write reference data",
	}

	relationships := &cobra.Command{
		Use:   "relationships",
		Short: "Create the mapping relationship vocabulary when it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *engine.Engine) error {
				created, err := e.SeedRelationships(ctx, opts.cfg.Relationship.TerminologyID)
				if err != nil {
					return err
				}
				allowed, err := e.Relationships.Allowed(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"created": created, "allowed": allowed})
			})
		},
	}
	cmd.AddCommand(relationships)
	return cmd
}
