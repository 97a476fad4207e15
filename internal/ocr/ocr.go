// Package ocr turns captured document images into text.
//
// Two backends implement Recognizer: Client talks to a remote OCR service
// over HTTP, and the tesseract subpackage runs recognition in-process.
package ocr

import (
	"context"
	"math"
	"strings"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
)

// Result is the outcome of one recognition. A failed recognition is a
// Result with Success false, not an error.
type Result struct {
	Success        bool    `json:"success"`
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"` // 0..100
	Error          string  `json:"error,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"` // seconds, as reported by the backend
}

// Failed builds an unsuccessful Result.
func Failed(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Recognizer extracts text from an image. Implementations return an error
// only when the call itself could not be made (cancelled context, closed
// engine); recognition failures are reported in the Result.
type Recognizer interface {
	Recognize(ctx context.Context, img capture.Image) (Result, error)
}

// Line is a single recognized text line.
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
}

// Combine joins lines with newlines and averages their confidence as a
// percentage rounded to two decimals.
func Combine(lines []Line) (string, float64) {
	if len(lines) == 0 {
		return "", 0
	}
	texts := make([]string, len(lines))
	var sum float64
	for i, l := range lines {
		texts[i] = l.Text
		sum += l.Confidence
	}
	return strings.Join(texts, "\n"), Round2(sum / float64(len(lines)) * 100)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
