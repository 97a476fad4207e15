package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestNewLogger_NoOutputs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{}

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestNewLogger_OTELWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	// OTEL requested but no provider available leaves no usable core.
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestNewLogger_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = Level(zapcore.DebugLevel)

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.DebugLevel))
	assert.False(t, logger.Enabled(TraceLevel))
	assert.NotNil(t, logger.Underlying())
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithDocument(context.Background(), 7)
	ctx = WithBatchID(ctx, "batch-1")
	ctx = WithRequestID(ctx, "req-9")

	tl.Info(ctx, "batch finished", zap.Int("matched", 2))

	tl.AssertLogged(t, zapcore.InfoLevel, "batch finished")
	tl.AssertField(t, "batch finished", "document.id", int64(7))
	tl.AssertField(t, "batch finished", "batch.id", "batch-1")
	tl.AssertField(t, "batch finished", "request.id", "req-9")
	tl.AssertField(t, "batch finished", "matched", int64(2))
}

func TestLogger_TraceCorrelation(t *testing.T) {
	tl := NewTestLogger()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tl.Debug(ctx, "traced")

	tl.AssertField(t, "traced", "trace_id", "4bf92f3577b34da6a3ce929d0e0e4736")
	tl.AssertField(t, "traced", "trace_sampled", true)
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Trace(ctx, "t")
	tl.Debug(ctx, "d")
	tl.Warn(ctx, "w")
	tl.Error(ctx, "e")

	tl.AssertLogged(t, TraceLevel, "t")
	tl.AssertLogged(t, zapcore.DebugLevel, "d")
	tl.AssertLogged(t, zapcore.WarnLevel, "w")
	tl.AssertLogged(t, zapcore.ErrorLevel, "e")
	tl.AssertNotLogged(t, zapcore.InfoLevel, "t")

	tl.Reset()
	assert.Empty(t, tl.All())
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()

	child := tl.Named("orchestrator").With(zap.String("component", "matcher"))
	child.Info(context.Background(), "child entry")

	entries := tl.FilterMessage("child entry").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "orchestrator", entries[0].LoggerName)
	assert.Equal(t, "matcher", entries[0].ContextMap()["component"])
}

func TestLogger_TraceLevelEncodedByName(t *testing.T) {
	var buf bytes.Buffer
	enc := newEncoder("json")
	core := zapcore.NewCore(enc, zapcore.AddSync(&buf), Level(TraceLevel))
	logger := &Logger{zap: zap.New(core)}

	logger.Trace(context.Background(), "settle wait")
	assert.Contains(t, buf.String(), `"level":"trace"`)
}

func TestContextHelpers_EmptyValues(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithBatchID(ctx, ""))
	assert.Equal(t, ctx, WithRequestID(ctx, ""))

	_, ok := DocumentFromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, ContextFields(ctx))
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"bogus", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
