package http

import (
	"github.com/fyrsmithlabs/docmatch/internal/capture"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
	"github.com/fyrsmithlabs/docmatch/internal/telemetry"
)

// HealthResponse is the response body for GET /health. Status is "degraded"
// when telemetry export has failed; the API still serves requests.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Service   string                  `json:"service"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// ExtractRequest is the request body for POST /api/v1/extract.
type ExtractRequest struct {
	Text string `json:"text"`
}

// OCRRequest is the request body for POST /api/v1/documents/:id/ocr.
// Image is base64, optionally as a data URL.
type OCRRequest struct {
	Image  string          `json:"image"`
	Region *capture.Region `json:"region,omitempty"`
}

// BatchListResponse is the response body for GET /api/v1/documents/:id/batches.
type BatchListResponse struct {
	DocumentID int                         `json:"document_id"`
	Batches    []*orchestrator.BatchResult `json:"batches"`
}
