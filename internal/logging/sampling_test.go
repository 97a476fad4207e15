package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/docmatch/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)

	sampled := newSampledCore(core, SamplingConfig{Enabled: false})
	assert.Equal(t, core, sampled)
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    1,
		Thereafter: 0,
	})
	logger := &Logger{zap: zap.New(sampled)}

	for i := 0; i < 50; i++ {
		logger.Error(context.Background(), "identifier failed")
	}

	assert.Len(t, observed.FilterMessage("identifier failed").All(), 50)
}

func TestNewSampledCore_InfoSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    5,
		Thereafter: 0,
	})
	logger := &Logger{zap: zap.New(sampled)}

	for i := 0; i < 50; i++ {
		logger.Info(context.Background(), "searching")
	}

	assert.Len(t, observed.FilterMessage("searching").All(), 5)
}

func TestFilterLevels(t *testing.T) {
	core, _ := observer.New(TraceLevel)
	f := filterLevels(core, func(l zapcore.Level) bool { return l < zapcore.ErrorLevel })

	assert.True(t, f.Enabled(TraceLevel))
	assert.True(t, f.Enabled(zapcore.InfoLevel))
	assert.True(t, f.Enabled(zapcore.WarnLevel))
	assert.False(t, f.Enabled(zapcore.ErrorLevel))

	child := f.With([]zapcore.Field{zap.String("k", "v")})
	assert.False(t, child.Enabled(zapcore.ErrorLevel))
}
