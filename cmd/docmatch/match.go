package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
	"github.com/fyrsmithlabs/docmatch/internal/roster"
	"github.com/fyrsmithlabs/docmatch/internal/store"
)

// rosterOptions are shared by commands that drive a roster file.
type rosterOptions struct {
	path          string
	renderLatency time.Duration
	document      int
	json          bool
}

func (r *rosterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.path, "roster", "", "roster file (.csv or .toml)")
	cmd.Flags().DurationVar(&r.renderLatency, "render-latency", 0, "simulated delay before the roster shows filtered results")
	cmd.Flags().BoolVar(&r.json, "json", false, "output results as JSON")
	_ = cmd.MarkFlagRequired("roster")
}

func (r *rosterOptions) load(a *app) (*roster.Roster, error) {
	people, err := roster.LoadFile(r.path)
	if err != nil {
		return nil, err
	}
	return roster.New(people,
		roster.WithRenderLatency(r.renderLatency),
		roster.WithLogger(a.logger.Named("roster")),
	), nil
}

func newMatchCmd(opts *rootOptions) *cobra.Command {
	ro := &rosterOptions{}

	cmd := &cobra.Command{
		Use:   "match <id>...",
		Short: "Select roster entries for the given identifiers",
		Long: `Search the roster for each identifier in turn and select the first entry
containing it. Every identifier ends up either matched or failed.

Examples:
  docmatch match --roster class.csv 987654321 123456789`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			r, err := ro.load(a)
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := a.orchestrator().MatchBatch(ctx, args, r, orchestrator.ForDocument(ro.document))
			if err != nil {
				return err
			}
			saveBatch(ctx, a, result)
			return printBatch(cmd.OutOrStdout(), result, ro.json)
		},
	}
	ro.register(cmd)
	cmd.Flags().IntVar(&ro.document, "document", 1, "document number to file the batch under")
	return cmd
}

// saveBatch records a batch so it can be retried later. Storage problems are
// logged, not fatal.
func saveBatch(ctx context.Context, a *app, result *orchestrator.BatchResult) {
	s, err := store.OpenFromConfig(a.cfg.Storage)
	if err != nil {
		a.logger.Warn(ctx, "batch not saved: "+err.Error())
		return
	}
	defer s.Close()
	if err := s.Save(result); err != nil {
		a.logger.Warn(ctx, "batch not saved: "+err.Error())
	}
}
