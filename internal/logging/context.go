// internal/logging/context.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if doc, ok := DocumentFromContext(ctx); ok {
		fields = append(fields, zap.Int("document.id", doc))
	}
	if batchID := BatchIDFromContext(ctx); batchID != "" {
		fields = append(fields, zap.String("batch.id", batchID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type documentCtxKey struct{}
type batchCtxKey struct{}
type requestCtxKey struct{}

// WithDocument tags the context with the document being processed.
func WithDocument(ctx context.Context, doc int) context.Context {
	return context.WithValue(ctx, documentCtxKey{}, doc)
}

// DocumentFromContext returns the document number, if one was set.
func DocumentFromContext(ctx context.Context) (int, bool) {
	doc, ok := ctx.Value(documentCtxKey{}).(int)
	return doc, ok
}

// WithBatchID tags the context with a match batch identifier.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	if batchID == "" {
		return ctx
	}
	return context.WithValue(ctx, batchCtxKey{}, batchID)
}

// BatchIDFromContext returns the batch identifier or "".
func BatchIDFromContext(ctx context.Context) string {
	if b, ok := ctx.Value(batchCtxKey{}).(string); ok {
		return b
	}
	return ""
}

// WithRequestID tags the context with an HTTP request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request identifier or "".
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}
