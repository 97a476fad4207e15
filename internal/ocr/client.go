package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
	"github.com/fyrsmithlabs/docmatch/internal/config"
)

const (
	defaultURL         = "http://localhost:5000"
	defaultTimeout     = 30 * time.Second
	defaultRateLimit   = 2.0
	defaultBurst       = 1
	defaultMaxRetries  = 2
	defaultBaseBackoff = 500 * time.Millisecond
)

// ClientConfig configures the remote OCR service client.
type ClientConfig struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64 // requests per second
	Burst      int
	MaxRetries int // 0 uses the default, negative disables retries
	Backoff    time.Duration
}

// ClientConfigFrom maps the ocr config section onto a ClientConfig.
func ClientConfigFrom(cfg config.OCRConfig) ClientConfig {
	return ClientConfig{
		URL:       cfg.URL,
		APIKey:    cfg.APIKey.Value(),
		Timeout:   cfg.Timeout.Duration(),
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}
}

// Client is a Recognizer backed by the OCR HTTP service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a Client, filling unset fields with defaults.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = defaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries: retries,
		backoff:    backoff,
	}
}

type recognizeRequest struct {
	Image string `json:"image"`
}

type recognizeResponse struct {
	Success        bool    `json:"success"`
	Lines          []Line  `json:"lines"`
	ProcessingTime float64 `json:"processing_time"`
	Error          string  `json:"error"`
}

// HealthStatus is the body of the service's /health endpoint.
type HealthStatus struct {
	Status   string `json:"status"`
	OCRReady bool   `json:"ocr_ready"`
}

// Recognize sends the image to POST /ocr. Transport failures, 429s and
// gateway errors are retried with exponential backoff.
func (c *Client) Recognize(ctx context.Context, img capture.Image) (Result, error) {
	if len(img.Data) == 0 {
		return Failed("no image provided"), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(recognizeRequest{Image: img.DataURL()})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}

		res, err := c.doRecognize(ctx, body)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return Failed(lastErr.Error()), nil
}

func (c *Client) doRecognize(ctx context.Context, body []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &retryableError{err: fmt.Errorf("ocr request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return Result{}, &retryableError{err: fmt.Errorf("rate limited (429)")}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return Result{}, &retryableError{err: fmt.Errorf("ocr service unavailable (%d)", resp.StatusCode)}
	}

	var out recognizeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Result{}, fmt.Errorf("ocr service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return Result{}, fmt.Errorf("parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("ocr service error (%d)", resp.StatusCode)
		}
		return Result{Success: false, Error: msg, ProcessingTime: out.ProcessingTime}, nil
	}

	text, confidence := Combine(out.Lines)
	return Result{
		Success:        true,
		Text:           text,
		Confidence:     confidence,
		ProcessingTime: out.ProcessingTime,
	}, nil
}

// Health queries GET /health. A non-ready service is reported as an error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return HealthStatus{}, fmt.Errorf("parse health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !status.OCRReady {
		return status, fmt.Errorf("ocr service not ready: status=%q", status.Status)
	}
	return status, nil
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

var _ Recognizer = (*Client)(nil)
