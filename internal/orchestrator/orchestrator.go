package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmatch/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/docmatch/internal/orchestrator"

// ErrBatchInProgress is returned when MatchBatch is called while another
// batch is running on the same Orchestrator.
var ErrBatchInProgress = errors.New("match batch already in progress")

// Orchestrator matches identifiers against an Environment one at a time.
// A single Orchestrator runs at most one batch at a time.
type Orchestrator struct {
	delays  Delays
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics

	mu sync.Mutex
	// straggler is the result channel of an item abandoned at its timeout
	// that may still be inside an Environment call. Guarded by mu.
	straggler <-chan Outcome
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracer sets the tracer used for batch and item spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMetrics sets the Prometheus metrics. Nil disables them.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator with the given delays.
func New(delays Delays, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		delays: delays,
		logger: logging.NewNop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Delays returns the configured delays.
func (o *Orchestrator) Delays() Delays {
	return o.delays
}

// BatchOption annotates a batch.
type BatchOption func(*BatchResult)

// ForDocument records which document the identifiers came from.
func ForDocument(doc int) BatchOption {
	return func(r *BatchResult) { r.DocumentID = doc }
}

// RetryOf links the batch to the one whose failures it retries.
func RetryOf(batchID string) BatchOption {
	return func(r *BatchResult) { r.RetryOf = batchID }
}

// MatchBatch classifies every identifier in ids, in order, as matched or
// failed. Failures of any kind are folded into the result; the only error
// is ErrBatchInProgress. Cancelling ctx fails the remaining identifiers with
// ReasonCancelled.
func (o *Orchestrator) MatchBatch(ctx context.Context, ids []string, env Environment, opts ...BatchOption) (*BatchResult, error) {
	if !o.mu.TryLock() {
		if o.metrics != nil {
			o.metrics.RejectedTotal.Inc()
		}
		return nil, ErrBatchInProgress
	}
	defer o.mu.Unlock()

	result := &BatchResult{
		BatchID:   uuid.NewString(),
		Matched:   []string{},
		Failed:    []string{},
		Total:     len(ids),
		Outcomes:  make([]Outcome, 0, len(ids)),
		StartedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(result)
	}

	ctx = logging.WithBatchID(ctx, result.BatchID)
	ctx, span := o.tracer.Start(ctx, "match.batch", trace.WithAttributes(
		attribute.String("batch.id", result.BatchID),
		attribute.Int("match.total", len(ids)),
	))
	defer span.End()

	if o.metrics != nil {
		o.metrics.BatchesInFlight.Inc()
		defer o.metrics.BatchesInFlight.Dec()
	}

	o.logger.Info(ctx, "match batch started", zap.Int("total", len(ids)), zap.String("retry_of", result.RetryOf))

	for i, id := range ids {
		var out Outcome
		if ctx.Err() != nil {
			out = Outcome{ID: id, Index: i + 1, State: StateFailed, Stage: StateIdle, Reason: ReasonCancelled}
		} else {
			out = o.runItem(ctx, env, id, i+1, len(ids))
		}
		result.record(out)
		o.metrics.observeItem(out)

		if i < len(ids)-1 && ctx.Err() == nil {
			_ = sleep(ctx, o.delays.Throttle)
		}
	}

	result.FinishedAt = time.Now()
	o.metrics.observeBatch(result)

	span.SetAttributes(
		attribute.Int("match.matched", len(result.Matched)),
		attribute.Int("match.failed", len(result.Failed)),
	)
	if !result.Complete() {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d identifiers failed", len(result.Failed), result.Total))
	}

	o.logger.Info(ctx, "match batch finished",
		zap.Int("matched", len(result.Matched)),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("duration", result.Duration()),
	)
	return result, nil
}

// Retry re-runs only the failed identifiers of prev.
func (o *Orchestrator) Retry(ctx context.Context, prev *BatchResult, env Environment) (*BatchResult, error) {
	failed := append([]string(nil), prev.Failed...)
	return o.MatchBatch(ctx, failed, env, ForDocument(prev.DocumentID), RetryOf(prev.BatchID))
}

// runItem bounds matchOne by the item timeout. A timed out call may still
// be blocked inside the Environment, so the next item first waits for it
// within its own timeout and fails without touching the Environment when
// the call is still stuck.
func (o *Orchestrator) runItem(ctx context.Context, env Environment, id string, index, total int) Outcome {
	ctx, span := o.tracer.Start(ctx, "match.item", trace.WithAttributes(
		attribute.String("match.id", id),
		attribute.Int("match.index", index),
	))
	defer span.End()

	itemCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.delays.ItemTimeout > 0 {
		itemCtx, cancel = context.WithTimeout(ctx, o.delays.ItemTimeout)
	}
	defer cancel()

	started := time.Now()
	var out Outcome
	if o.awaitStraggler(itemCtx) {
		done := make(chan Outcome, 1)
		go func() {
			done <- o.matchOne(itemCtx, env, id, index, total)
		}()

		select {
		case out = <-done:
		case <-itemCtx.Done():
			select {
			case out = <-done:
			default:
				o.straggler = done
				out = Outcome{ID: id, Index: index, State: StateFailed, Stage: StateIdle}
				out.Reason, out.Detail = contextReason(ctx, itemCtx)
			}
		}
	} else {
		out = Outcome{ID: id, Index: index, State: StateFailed, Stage: StateIdle}
		out.Reason, out.Detail = contextReason(ctx, itemCtx)
		out.Detail = "previous identifier still inside the environment: " + out.Detail
	}
	out.Elapsed = time.Since(started)

	span.SetAttributes(attribute.String("match.state", string(out.State)))
	if !out.Matched() {
		span.SetStatus(codes.Error, string(out.Reason))
		o.logger.Warn(ctx, "identifier not matched",
			logging.MaskedID("id", id),
			zap.String("reason", string(out.Reason)),
			zap.String("detail", out.Detail),
			zap.String("stage", string(out.Stage)),
		)
	} else {
		o.logger.Debug(ctx, "identifier matched",
			logging.MaskedID("id", id),
			zap.Bool("already_selected", out.AlreadySelected),
		)
	}
	return out
}

// awaitStraggler waits for an abandoned item to leave the Environment. It
// reports false when ctx ends first; the straggler is then kept for the
// next item.
func (o *Orchestrator) awaitStraggler(ctx context.Context) bool {
	if o.straggler == nil {
		return true
	}
	select {
	case <-o.straggler:
		o.straggler = nil
		return true
	case <-ctx.Done():
		return false
	}
}

// matchOne walks one identifier through the workflow. It never panics and
// never returns without a terminal state.
func (o *Orchestrator) matchOne(ctx context.Context, env Environment, id string, index, total int) (out Outcome) {
	out = Outcome{ID: id, Index: index, State: StateIdle, Stage: StateIdle}

	defer func() {
		if r := recover(); r != nil {
			out.State = StateFailed
			out.Reason = ReasonPanic
			out.Detail = fmt.Sprint(r)
		}
	}()

	fail := func(reason Reason, detail string) Outcome {
		out.State = StateFailed
		out.Reason = reason
		out.Detail = detail
		return out
	}
	failCtx := func(err error) Outcome {
		if errors.Is(err, context.DeadlineExceeded) {
			return fail(ReasonTimeout, err.Error())
		}
		return fail(ReasonCancelled, err.Error())
	}

	env.ReportProgress(fmt.Sprintf("(%d/%d): %s", index, total, id))

	field, err := env.LocateSearchField(ctx)
	if err != nil {
		if errors.Is(err, ErrSearchFieldNotFound) {
			return fail(ReasonNoSearchField, err.Error())
		}
		return fail(ReasonEnvironment, err.Error())
	}
	if field == nil {
		return fail(ReasonNoSearchField, ErrSearchFieldNotFound.Error())
	}

	out.Stage = StateSearching
	o.logger.Trace(ctx, "clearing search field", logging.MaskedID("id", id))
	if err := ctx.Err(); err != nil {
		return failCtx(err)
	}
	if err := env.SetSearchValue(ctx, field, ""); err != nil {
		return fail(ReasonEnvironment, fmt.Sprintf("clear search: %v", err))
	}
	if err := sleep(ctx, o.delays.ClearSettle); err != nil {
		return failCtx(err)
	}

	if err := env.SetSearchValue(ctx, field, id); err != nil {
		return fail(ReasonEnvironment, fmt.Sprintf("set search: %v", err))
	}
	if err := sleep(ctx, o.delays.SearchSettle); err != nil {
		return failCtx(err)
	}

	out.Stage = StateResultsRendered
	entries, err := env.ListCandidateEntries(ctx)
	if err != nil {
		return fail(ReasonEnvironment, fmt.Sprintf("list entries: %v", err))
	}
	o.logger.Trace(ctx, "results rendered", logging.MaskedID("id", id), zap.Int("entries", len(entries)))

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		text := entry.DisplayText()
		if !strings.Contains(text, id) {
			continue
		}
		out.Entry = text

		if entry.IsSelected() {
			out.AlreadySelected = true
			out.State = StateMatched
			return out
		}

		if err := ctx.Err(); err != nil {
			return failCtx(err)
		}
		if err := entry.Select(); err != nil {
			return fail(ReasonEnvironment, fmt.Sprintf("select entry: %v", err))
		}
		if err := sleep(ctx, o.delays.SelectSettle); err != nil {
			return failCtx(err)
		}
		out.State = StateMatched
		return out
	}

	return fail(ReasonNoEntry, fmt.Sprintf("no entry among %d contains %s", len(entries), id))
}

// contextReason explains why itemCtx ended: the batch was cancelled or the
// item ran out of time.
func contextReason(batchCtx, itemCtx context.Context) (Reason, string) {
	if err := batchCtx.Err(); err != nil {
		return ReasonCancelled, err.Error()
	}
	return ReasonTimeout, itemCtx.Err().Error()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
