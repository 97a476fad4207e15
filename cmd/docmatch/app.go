package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/docmatch/internal/config"
	"github.com/fyrsmithlabs/docmatch/internal/extraction"
	"github.com/fyrsmithlabs/docmatch/internal/logging"
	"github.com/fyrsmithlabs/docmatch/internal/ocr"
	"github.com/fyrsmithlabs/docmatch/internal/ocr/tesseract"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
	"github.com/fyrsmithlabs/docmatch/internal/telemetry"
)

// app holds the ambient services every command needs.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
}

// newApp loads configuration and builds logging and telemetry. One-shot
// commands log to stderr so stdout carries only results.
func newApp(ctx context.Context, opts *rootOptions, server bool) (*app, error) {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	telCfg, err := telemetry.LoadConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry config: %w", err)
	}
	if !server {
		telCfg.Enabled = false
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.LoadConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	if !server {
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
		logCfg.Level = logging.Level(zapcore.WarnLevel)
		if opts.verbose {
			logCfg.Level = logging.Level(zapcore.DebugLevel)
		}
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &app{cfg: cfg, logger: logger, telemetry: tel}, nil
}

// Close flushes telemetry and logs.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := a.logger.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("logger sync: %w", err))
	}
	return errors.Join(errs...)
}

func (a *app) extractor() (*extraction.PatternExtractor, error) {
	cfg, err := extraction.LoadConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	return extraction.NewPatternExtractor(cfg)
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(
		orchestrator.DelaysFromConfig(a.cfg.Matching),
		orchestrator.WithLogger(a.logger.Named("match")),
		orchestrator.WithTracer(a.telemetry.Tracer("github.com/fyrsmithlabs/docmatch/internal/orchestrator")),
		orchestrator.WithMetrics(orchestrator.NewMetrics()),
	)
}

// recognizer builds the OCR backend. engine overrides ocr.engine when set.
func (a *app) recognizer(engine string) (ocr.Recognizer, error) {
	if engine == "" {
		engine = a.cfg.OCR.Engine
	}
	switch strings.ToLower(engine) {
	case "remote":
		return ocr.NewClient(ocr.ClientConfigFrom(a.cfg.OCR)), nil
	case "tesseract":
		e, err := tesseract.New(a.cfg.OCR.Languages...)
		if err != nil {
			return nil, err
		}
		a.logger.Debug(context.Background(), "using local ocr engine", zap.String("engine", e.Name()))
		return e, nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q (want remote or tesseract)", engine)
	}
}
