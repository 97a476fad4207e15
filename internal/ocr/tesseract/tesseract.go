// Package tesseract runs OCR in-process with the Tesseract engine.
//
// The gosseract binding needs cgo and libtesseract, so it is compiled only
// with the "tesseract" build tag. Without the tag New returns ErrUnavailable
// and callers fall back to the remote OCR service.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
	"github.com/fyrsmithlabs/docmatch/internal/ocr"
)

// ErrUnavailable is returned by New when the binary was built without
// Tesseract support.
var ErrUnavailable = errors.New("tesseract support not compiled in (build with -tags tesseract)")

// client is the subset of a Tesseract session the engine drives.
type client interface {
	SetImageFromBytes(data []byte) error
	SetLanguage(langs ...string) error
	Text() (string, error)
	// WordConfidences returns per-word confidence in 0..100.
	WordConfidences() ([]float64, error)
	Close() error
}

// defaultFactory is set by the cgo build.
var defaultFactory func() client

// Engine is an ocr.Recognizer backed by Tesseract. A fresh session is opened
// per image.
type Engine struct {
	clientFactory func() client
	languages     []string
}

// New constructs an Engine for the given languages ("eng" when empty).
func New(languages ...string) (*Engine, error) {
	if defaultFactory == nil {
		return nil, ErrUnavailable
	}
	return newEngine(defaultFactory, languages), nil
}

func newEngine(factory func() client, languages []string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{clientFactory: factory, languages: languages}
}

// Name identifies the engine in logs.
func (e *Engine) Name() string { return "tesseract" }

// Recognize implements ocr.Recognizer.
func (e *Engine) Recognize(ctx context.Context, img capture.Image) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	if len(img.Data) == 0 {
		return ocr.Failed("no image provided"), nil
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(img.Data); err != nil {
		return ocr.Failed(fmt.Sprintf("set image: %v", err)), nil
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return ocr.Failed(fmt.Sprintf("set languages: %v", err)), nil
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Failed(fmt.Sprintf("recognize text: %v", err)), nil
	}

	return ocr.Result{
		Success:    true,
		Text:       strings.TrimSpace(text),
		Confidence: averageConfidence(c),
	}, nil
}

func averageConfidence(c client) float64 {
	confs, err := c.WordConfidences()
	if err != nil || len(confs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range confs {
		sum += v
	}
	return ocr.Round2(sum / float64(len(confs)))
}

var _ ocr.Recognizer = (*Engine)(nil)
