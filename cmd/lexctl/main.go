// Command lexctl runs maintenance and inspection tasks against a lexicon store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lexicon/internal/engine"
	"lexicon/internal/platform/config"
	"lexicon/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
	// cfg is the configuration the last withEngine call opened.
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "lexctl",
		Short:         "Inspect and maintain a lexicon store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("LEXICON_CONFIG_FILE"), "YAML configuration file")

	root.AddCommand(
		newMigrateCmd(opts),
		newIdentityCmd(opts),
		newProvenanceCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

// withEngine opens the configured engine for the duration of fn. Logs go to stderr so
// stdout stays machine readable.
func withEngine(cmd *cobra.Command, opts *options, fn func(context.Context, *engine.Engine) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	// Seeding is an explicit command here.
	cfg.Relationship.Seed = false
	opts.cfg = cfg

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := engine.Open(ctx, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			log.Warn("closing engine", "error", cerr)
		}
	}()
	return fn(ctx, e)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
