// Package pipeline composes capture, OCR, extraction and matching into one
// document run.
//
// A run is:
//
//	guard -> capture -> OCR -> extract -> match (optional) -> persist -> publish
//
// At most one run per document is in flight. A capture cancelled by the user
// ends the run cleanly before OCR. Unsuccessful OCR stops the run before
// extraction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
	"github.com/fyrsmithlabs/docmatch/internal/events"
	"github.com/fyrsmithlabs/docmatch/internal/extraction"
	"github.com/fyrsmithlabs/docmatch/internal/logging"
	"github.com/fyrsmithlabs/docmatch/internal/ocr"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
)

const instrumentationName = "github.com/fyrsmithlabs/docmatch/internal/pipeline"

// ErrOCRFailed is returned when the recognizer reports an unsuccessful
// result.
var ErrOCRFailed = errors.New("OCR processing failed")

// BatchStore persists match batches.
type BatchStore interface {
	Save(r *orchestrator.BatchResult) error
}

// Request describes one document run.
type Request struct {
	// DocumentID keys the exclusivity guard and events. Zero uses 1.
	DocumentID int
	Capturer   capture.Capturer
	// Environment is optional. Without it the run stops after extraction.
	Environment orchestrator.Environment
	// OnStatus receives each status message as it happens.
	OnStatus func(msg string)
}

// Result is the outcome of a run.
type Result struct {
	DocumentID     int                       `json:"document_id"`
	DocumentNumber int                       `json:"document_number"`
	Record         *extraction.Record        `json:"extracted_data,omitempty"`
	OCRConfidence  float64                   `json:"ocr_confidence"`
	ProcessingType capture.ProcessingType    `json:"processing_type,omitempty"`
	Batch          *orchestrator.BatchResult `json:"batch,omitempty"`
	Cancelled      bool                      `json:"cancelled,omitempty"`
}

// Pipeline runs documents end to end. It is safe for concurrent use across
// documents; each document matches through its own Orchestrator.
type Pipeline struct {
	guard           *Guard
	recognizer      ocr.Recognizer
	extractor       extraction.Extractor
	newOrchestrator func() *orchestrator.Orchestrator
	store           BatchStore
	publisher       *events.Publisher
	logger          *logging.Logger
	tracer          trace.Tracer
	metrics         *Metrics

	orchMu        sync.Mutex
	orchestrators map[int]*orchestrator.Orchestrator
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOrchestrators sets how the Orchestrator for a document is built. It
// is called once per document, the first time that document is matched.
func WithOrchestrators(newFn func() *orchestrator.Orchestrator) Option {
	return func(p *Pipeline) { p.newOrchestrator = newFn }
}

// WithStore persists every match batch.
func WithStore(s BatchStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithPublisher publishes progress and completion events.
func WithPublisher(pub *events.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithGuard shares a guard between pipelines.
func WithGuard(g *Guard) Option {
	return func(p *Pipeline) { p.guard = g }
}

// New creates a Pipeline.
func New(recognizer ocr.Recognizer, extractor extraction.Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		guard:         NewGuard(),
		recognizer:    recognizer,
		extractor:     extractor,
		logger:        logging.NewNop(),
		tracer:        otel.Tracer(instrumentationName),
		orchestrators: make(map[int]*orchestrator.Orchestrator),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.newOrchestrator == nil {
		logger := p.logger
		p.newOrchestrator = func() *orchestrator.Orchestrator {
			return orchestrator.New(orchestrator.DefaultDelays(), orchestrator.WithLogger(logger))
		}
	}
	return p
}

// orchestratorFor returns the Orchestrator owned by doc. The guard already
// serialises runs of one document, so its Orchestrator is never contended.
func (p *Pipeline) orchestratorFor(doc int) *orchestrator.Orchestrator {
	p.orchMu.Lock()
	defer p.orchMu.Unlock()

	o, ok := p.orchestrators[doc]
	if !ok {
		o = p.newOrchestrator()
		p.orchestrators[doc] = o
	}
	return o
}

// Guard exposes the exclusivity guard.
func (p *Pipeline) Guard() *Guard {
	return p.guard
}

// Process runs one document.
func (p *Pipeline) Process(ctx context.Context, req Request) (res *Result, err error) {
	doc := req.DocumentID
	if doc < 1 {
		doc = 1
	}
	started := time.Now()

	release, err := p.guard.Acquire(doc)
	if err != nil {
		p.metrics.observeRun("busy", 0)
		return nil, err
	}
	defer release()

	ctx = logging.WithDocument(ctx, doc)
	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.Int("document.id", doc),
	))
	defer span.End()

	outcome := "error"
	defer func() {
		p.metrics.observeRun(outcome, time.Since(started).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.status(ctx, req, doc, "Error: "+err.Error())
			_ = p.publisher.Publish(ctx, events.Event{Kind: events.KindFailed, DocumentID: doc, Message: err.Error()})
		}
	}()

	if req.Capturer == nil {
		return nil, fmt.Errorf("no capturer")
	}
	_ = p.publisher.Publish(ctx, events.Event{Kind: events.KindStarted, DocumentID: doc})

	img, err := req.Capturer.Capture(ctx)
	if errors.Is(err, capture.ErrCancelled) {
		outcome = "cancelled"
		p.logger.Info(ctx, "capture cancelled")
		return &Result{DocumentID: doc, Cancelled: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	kind := img.ProcessingType()
	span.SetAttributes(attribute.String("document.processing_type", string(kind)))
	if kind == capture.SelectedArea {
		p.status(ctx, req, doc, "Processing selected area...")
		p.status(ctx, req, doc, "ROI extracted, running OCR...")
	} else {
		p.status(ctx, req, doc, "Processing entire document...")
		p.status(ctx, req, doc, "Image extracted, running OCR...")
	}

	ocrRes, err := p.recognize(ctx, img)
	if err != nil {
		return nil, err
	}
	if !ocrRes.Success {
		outcome = "ocr_failed"
		if ocrRes.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrOCRFailed, ocrRes.Error)
		}
		return nil, ErrOCRFailed
	}

	p.status(ctx, req, doc, "OCR complete, parsing data...")
	rec := p.extractor.Extract(ocrRes.Text)
	p.metrics.observeRecord(rec, ocrRes.Confidence)
	p.logger.Info(ctx, "document extracted",
		logging.Count("names", rec.Names),
		logging.Count("ids", rec.IDs),
		logging.Count("phones", rec.Phones),
		zap.Float64("ocr_confidence", ocrRes.Confidence),
	)

	res = &Result{
		DocumentID:     doc,
		DocumentNumber: img.DocumentNumber,
		Record:         &rec,
		OCRConfidence:  ocrRes.Confidence,
		ProcessingType: kind,
	}

	if req.Environment != nil && len(rec.IDs) > 0 {
		p.status(ctx, req, doc, fmt.Sprintf("Matching %d identifiers...", len(rec.IDs)))
		env := events.NewProgressSink(req.Environment, p.publisher, doc)
		batch, err := p.orchestratorFor(doc).MatchBatch(ctx, rec.IDs, env, orchestrator.ForDocument(doc))
		if err != nil {
			return nil, fmt.Errorf("match: %w", err)
		}
		res.Batch = batch
		p.persist(ctx, batch)
	}

	done := "Document processed successfully!"
	if kind == capture.SelectedArea {
		done = "Selected area processed successfully!"
	}
	p.status(ctx, req, doc, done)
	_ = p.publisher.Completed(ctx, doc, done, res.Batch)

	outcome = "success"
	return res, nil
}

// Retry re-runs the failed identifiers of a stored batch against env and
// persists the new batch.
func (p *Pipeline) Retry(ctx context.Context, prev *orchestrator.BatchResult, env orchestrator.Environment) (*orchestrator.BatchResult, error) {
	doc := prev.DocumentID
	if doc < 1 {
		doc = 1
	}
	release, err := p.guard.Acquire(doc)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = logging.WithDocument(ctx, doc)
	batch, err := p.orchestratorFor(doc).Retry(ctx, prev, events.NewProgressSink(env, p.publisher, doc))
	if err != nil {
		return nil, err
	}
	p.persist(ctx, batch)
	_ = p.publisher.Completed(ctx, doc, "Retry complete", batch)
	return batch, nil
}

func (p *Pipeline) recognize(ctx context.Context, img capture.Image) (ocr.Result, error) {
	ctx, span := p.tracer.Start(ctx, "ocr.recognize", trace.WithAttributes(
		attribute.Int("image.width", img.Width),
		attribute.Int("image.height", img.Height),
	))
	defer span.End()

	res, err := p.recognizer.Recognize(ctx, img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ocr.Result{}, fmt.Errorf("recognize: %w", err)
	}
	span.SetAttributes(
		attribute.Bool("ocr.success", res.Success),
		attribute.Float64("ocr.confidence", res.Confidence),
	)
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
		p.logger.Warn(ctx, "ocr failed", zap.String("error", res.Error))
	}
	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, batch *orchestrator.BatchResult) {
	if p.store == nil || batch == nil {
		return
	}
	if err := p.store.Save(batch); err != nil {
		p.logger.Error(ctx, "failed to persist batch",
			zap.String("batch_id", batch.BatchID),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) status(ctx context.Context, req Request, doc int, msg string) {
	p.logger.Info(ctx, "status", zap.String("message", msg))
	if req.OnStatus != nil {
		req.OnStatus(msg)
	}
	_ = p.publisher.Progress(ctx, doc, msg)
}
