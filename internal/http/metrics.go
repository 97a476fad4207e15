package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmatch/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/docmatch/internal/http"

// HTTPMetrics records request counts, latency and payload sizes for the API.
// Instruments that fail to register stay nil and are skipped.
type HTTPMetrics struct {
	meter          metric.Meter
	logger         *logging.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	requestSize    metric.Int64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTPMetrics on meter, or on the global meter
// provider when meter is nil.
func NewHTTPMetrics(logger *logging.Logger, meter metric.Meter) *HTTPMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	if meter == nil {
		meter = otel.Meter(httpInstrumentationName)
	}

	m := &HTTPMetrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	ctx := context.Background()
	warn := func(name string, err error) {
		if err != nil {
			m.logger.Warn(ctx, "failed to create http instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	var err error
	m.requestsTotal, err = m.meter.Int64Counter(
		"docmatch.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status"),
		metric.WithUnit("{request}"),
	)
	warn("requests_total", err)

	m.requestDur, err = m.meter.Float64Histogram(
		"docmatch.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency; OCR routes include the OCR round trip"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	warn("request_duration_seconds", err)

	// Page scans arrive base64 encoded, so bodies run to megabytes.
	m.requestSize, err = m.meter.Int64Histogram(
		"docmatch.http.request_size_bytes",
		metric.WithDescription("HTTP request body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1e3, 1e4, 1e5, 5e5, 1e6, 5e6, 1e7, 2e7),
	)
	warn("request_size_bytes", err)

	m.responseSize, err = m.meter.Int64Histogram(
		"docmatch.http.response_size_bytes",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000),
	)
	warn("response_size_bytes", err)

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"docmatch.http.active_requests",
		metric.WithDescription("HTTP requests in flight, including open event streams"),
		metric.WithUnit("{request}"),
	)
	warn("active_requests", err)
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
				defer m.activeRequests.Add(ctx, -1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.requestSize != nil && req.ContentLength > 0 {
				m.requestSize.Record(ctx, req.ContentLength, attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}
			return err
		}
	}
}

// normalizePath maps the matched route onto a metric label. Echo reports
// the route pattern ("/api/v1/batches/:id"), so ids never reach the label;
// unmatched requests have an empty path.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
