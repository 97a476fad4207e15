package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docmatch/internal/extraction"
	"github.com/fyrsmithlabs/docmatch/internal/pipeline"
	"github.com/fyrsmithlabs/docmatch/internal/store"
)

func newRetryCmd(opts *rootOptions) *cobra.Command {
	ro := &rosterOptions{}

	cmd := &cobra.Command{
		Use:   "retry <batch-id>",
		Short: "Re-run the failed identifiers of a stored batch",
		Long: `Load a stored batch and match only its failed identifiers again. The new
batch records which batch it retried.

Examples:
  docmatch retry 6f1c2e0a-... --roster class.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			batches, err := store.OpenFromConfig(a.cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to open batch store: %w", err)
			}
			defer batches.Close()

			prev, err := batches.Get(args[0])
			if err != nil {
				return fmt.Errorf("batch %s: %w", args[0], err)
			}
			if len(prev.Failed) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "batch %s has no failed identifiers\n", prev.BatchID)
				return printBatch(cmd.OutOrStdout(), prev, ro.json)
			}

			r, err := ro.load(a)
			if err != nil {
				return err
			}
			defer r.Close()

			// Retries never capture, so no recognizer is needed.
			p := pipeline.New(nil, extraction.Default(),
				pipeline.WithOrchestrators(a.orchestrator),
				pipeline.WithStore(batches),
				pipeline.WithLogger(a.logger.Named("pipeline")),
			)
			result, err := p.Retry(ctx, prev, r)
			if err != nil {
				return err
			}
			return printBatch(cmd.OutOrStdout(), result, ro.json)
		},
	}
	ro.register(cmd)
	return cmd
}
