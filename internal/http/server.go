// Package http provides the docmatch HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
	"github.com/fyrsmithlabs/docmatch/internal/events"
	"github.com/fyrsmithlabs/docmatch/internal/extraction"
	"github.com/fyrsmithlabs/docmatch/internal/logging"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
	"github.com/fyrsmithlabs/docmatch/internal/pipeline"
	"github.com/fyrsmithlabs/docmatch/internal/store"
	"github.com/fyrsmithlabs/docmatch/internal/telemetry"
)

// maxBodySize bounds request bodies; base64 page scans are large.
const maxBodySize = "20M"

// BatchReader reads persisted match batches.
type BatchReader interface {
	Get(id string) (*orchestrator.BatchResult, error)
	ListByDocument(doc int) ([]*orchestrator.BatchResult, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	ServiceName string
}

// HealthReporter reports exporter health for GET /health.
type HealthReporter interface {
	Health() telemetry.HealthStatus
}

// Deps are the services the API exposes. Store, Publisher, Metrics and
// Telemetry are optional.
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Extractor extraction.Extractor
	Store     BatchReader
	Publisher *events.Publisher
	Metrics   *HTTPMetrics
	Telemetry HealthReporter
}

// Server provides HTTP endpoints for docmatch.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *logging.Logger
	config *Config
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *logging.Logger, cfg *Config) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "docmatch"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxBodySize))
	if deps.Metrics != nil {
		e.Use(deps.Metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/extract", s.handleExtract)
	v1.POST("/documents/:id/ocr", s.handleDocumentOCR)
	v1.GET("/documents/:id/batches", s.handleDocumentBatches)
	v1.GET("/documents/:id/events", s.handleDocumentEvents)
	v1.GET("/batches/:id", s.handleGetBatch)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Service: s.config.ServiceName}
	if s.deps.Telemetry != nil {
		h := s.deps.Telemetry.Health()
		resp.Telemetry = &h
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExtract(c echo.Context) error {
	var req ExtractRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid extract request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec := s.deps.Extractor.Extract(req.Text)
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDocumentOCR(c echo.Context) error {
	doc, err := documentParam(c)
	if err != nil {
		return err
	}

	var req OCRRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid ocr request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Image == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "image field is required")
	}
	data, err := capture.DecodeDataURL(req.Image)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := s.deps.Pipeline.Process(c.Request().Context(), pipeline.Request{
		DocumentID: doc,
		Capturer:   capture.BytesCapturer{Data: data, DocumentNumber: doc, Region: req.Region},
	})
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleDocumentBatches(c echo.Context) error {
	doc, err := documentParam(c)
	if err != nil {
		return err
	}
	if s.deps.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "batch storage disabled")
	}
	batches, err := s.deps.Store.ListByDocument(doc)
	if err != nil {
		return s.httpError(c, err)
	}
	if batches == nil {
		batches = []*orchestrator.BatchResult{}
	}
	return c.JSON(http.StatusOK, BatchListResponse{DocumentID: doc, Batches: batches})
}

func (s *Server) handleGetBatch(c echo.Context) error {
	if s.deps.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "batch storage disabled")
	}
	batch, err := s.deps.Store.Get(c.Param("id"))
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusOK, batch)
}

// httpError maps domain errors onto status codes.
func (s *Server) httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrAlreadyProcessing):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrOCRFailed):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, capture.ErrInvalidImage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func documentParam(c echo.Context) (int, error) {
	doc, err := strconv.Atoi(c.Param("id"))
	if err != nil || doc < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "document id must be a positive integer")
	}
	return doc, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
