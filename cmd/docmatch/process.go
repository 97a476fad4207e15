package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
	"github.com/fyrsmithlabs/docmatch/internal/pipeline"
	"github.com/fyrsmithlabs/docmatch/internal/store"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	var (
		ro     = &rosterOptions{}
		engine string
		region string
	)

	cmd := &cobra.Command{
		Use:   "process <image>",
		Short: "OCR a document, extract its fields and match ids against a roster",
		Long: `Run the whole pipeline on one document image: OCR, field extraction, and
matching of every extracted id against the roster. The batch is stored for
later retries.

Examples:
  docmatch process page.png --roster class.csv
  docmatch process page.png --roster class.toml --region 0,0,800,400 --document 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			roi, err := parseRegion(region)
			if err != nil {
				return err
			}
			recognizer, err := a.recognizer(engine)
			if err != nil {
				return err
			}
			extractor, err := a.extractor()
			if err != nil {
				return err
			}
			r, err := ro.load(a)
			if err != nil {
				return err
			}
			defer r.Close()

			batches, err := store.OpenFromConfig(a.cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to open batch store: %w", err)
			}
			defer batches.Close()

			p := pipeline.New(recognizer, extractor,
				pipeline.WithOrchestrators(a.orchestrator),
				pipeline.WithStore(batches),
				pipeline.WithLogger(a.logger.Named("pipeline")),
			)

			doc := ro.document
			if doc < 1 {
				doc = 1
			}
			res, err := p.Process(ctx, pipeline.Request{
				DocumentID:  doc,
				Capturer:    capture.FileCapturer{Path: args[0], DocumentNumber: doc, Region: roi},
				Environment: r,
				OnStatus: func(msg string) {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
				},
			})
			if err != nil {
				return err
			}
			if ro.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	ro.register(cmd)
	cmd.Flags().IntVar(&ro.document, "document", 1, "document number")
	cmd.Flags().StringVar(&engine, "engine", "", "OCR engine: remote or tesseract (default from config)")
	cmd.Flags().StringVar(&region, "region", "", "crop to x,y,width,height before OCR")
	return cmd
}
