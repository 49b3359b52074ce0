package main

import (
	"context"

	"github.com/spf13/cobra"

	"lexicon/internal/engine"
	"lexicon/pkg/domain"
)

func newIdentityCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Canonical id lookups",
	}

	var dom string
	resolve := &cobra.Command{
		Use:   "resolve RESOURCE_TYPE NATURAL_KEY",
		Short: "Return the canonical id for a natural key, minting one if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := domain.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, opts, func(ctx context.Context, e *engine.Engine) error {
				id, err := e.Identity.Resolve(ctx, rt, args[1], dom)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
			})
		},
	}
	lookup := &cobra.Command{
		Use:   "lookup RESOURCE_TYPE NATURAL_KEY",
		Short: "Return the canonical id for a natural key without minting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := domain.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, opts, func(ctx context.Context, e *engine.Engine) error {
				id, found, err := e.Identity.Lookup(ctx, rt, args[1], dom)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "found": found})
			})
		},
	}
	for _, c := range []*cobra.Command{resolve, lookup} {
		c.Flags().StringVar(&dom, "domain", "", "domain qualifier of the natural key")
	}
	cmd.AddCommand(resolve, lookup)
	return cmd
}
