package main

import (
	"context"

	"github.com/spf13/cobra"

	"lexicon/internal/engine"
	"lexicon/internal/provenance"
	"lexicon/pkg/domain"
)

func newProvenanceCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provenance",
		Short: "Read change history",
	}

	var timeline bool
	show := &cobra.Command{
		Use:   "show RESOURCE_TYPE ID [TARGET]",
		Short: "Print the history of one target, or of every target of a resource",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := domain.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			ref := provenance.Ref{Type: rt, ID: args[1]}
			return withEngine(cmd, opts, func(ctx context.Context, e *engine.Engine) error {
				var out any
				switch {
				case len(args) == 3:
					changes, err := e.Provenance.Get(ctx, ref, args[2])
					if err != nil {
						return err
					}
					display := make([]provenance.DisplayChange, 0, len(changes))
					for _, c := range changes {
						display = append(display, c.Display())
					}
					out = display
				case timeline:
					if out, err = e.Provenance.Timeline(ctx, ref); err != nil {
						return err
					}
				default:
					if out, err = e.Provenance.GetAll(ctx, ref); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	show.Flags().BoolVar(&timeline, "timeline", false, "merge all targets into one ordered list")
	cmd.AddCommand(show)
	return cmd
}
