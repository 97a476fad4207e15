package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmatch/internal/events"
	httpserver "github.com/fyrsmithlabs/docmatch/internal/http"
	"github.com/fyrsmithlabs/docmatch/internal/logging"
	"github.com/fyrsmithlabs/docmatch/internal/pipeline"
	"github.com/fyrsmithlabs/docmatch/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the docmatch HTTP API.

Endpoints:
  GET  /health
  GET  /metrics
  POST /api/v1/extract
  POST /api/v1/documents/{id}/ocr
  GET  /api/v1/documents/{id}/batches
  GET  /api/v1/documents/{id}/events
  GET  /api/v1/batches/{id}

Examples:
  # Start with defaults
  docmatch serve

  # Override the port through the environment
  DOCMATCH_SERVER_HTTP_PORT=8080 docmatch serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, engine)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "OCR engine: remote or tesseract (default from config)")
	return cmd
}

// runServe wires every service and blocks until ctx is cancelled.
func runServe(ctx context.Context, opts *rootOptions, engine string) (err error) {
	a, err := newApp(ctx, opts, true)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		err = errors.Join(err, a.Close(shutdownCtx))
	}()

	a.logger.Info(ctx, "starting docmatch",
		zap.String("version", version),
		zap.Int("port", a.cfg.Server.Port),
		zap.String("ocr_engine", a.cfg.OCR.Engine),
		logging.Secret("ocr_api_key", a.cfg.OCR.APIKey),
		zap.Bool("events", a.cfg.Events.Enabled),
	)

	recognizer, err := a.recognizer(engine)
	if err != nil {
		return err
	}
	extractor, err := a.extractor()
	if err != nil {
		return err
	}

	batches, err := store.OpenFromConfig(a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open batch store: %w", err)
	}
	defer batches.Close()

	publisher, err := events.Connect(a.cfg.Events, a.logger.Named("events"))
	if err != nil {
		return err
	}
	defer publisher.Close()

	p := pipeline.New(recognizer, extractor,
		pipeline.WithOrchestrators(a.orchestrator),
		pipeline.WithStore(batches),
		pipeline.WithPublisher(publisher),
		pipeline.WithLogger(a.logger.Named("pipeline")),
		pipeline.WithTracer(a.telemetry.Tracer("github.com/fyrsmithlabs/docmatch/internal/pipeline")),
		pipeline.WithMetrics(pipeline.NewMetrics()),
	)

	srv, err := httpserver.NewServer(httpserver.Deps{
		Pipeline:  p,
		Extractor: extractor,
		Store:     batches,
		Publisher: publisher,
		Metrics:   httpserver.NewHTTPMetrics(a.logger, a.telemetry.Meter("github.com/fyrsmithlabs/docmatch/internal/http")),
		Telemetry: a.telemetry,
	}, a.logger.Named("http"), &httpserver.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		ServiceName: a.cfg.Server.ServiceName,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info(ctx, "server shutdown complete")
	return nil
}
