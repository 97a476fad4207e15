// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with sampling. Entries below Error are sampled
// so a long batch of identical "searching" lines stays bounded; errors
// always pass through.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	errorCore := filterLevels(core, func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel })
	rest := filterLevels(core, func(l zapcore.Level) bool { return l < zapcore.ErrorLevel })

	sampled := zapcore.NewSamplerWithOptions(
		rest,
		cfg.Tick.Duration(),
		cfg.Initial,
		cfg.Thereafter,
	)
	return zapcore.NewTee(errorCore, sampled)
}

// filteredCore passes through only the levels accepted by allow.
type filteredCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func filterLevels(core zapcore.Core, allow func(zapcore.Level) bool) zapcore.Core {
	return &filteredCore{Core: core, allow: allow}
}

func (c *filteredCore) Enabled(lvl zapcore.Level) bool {
	return c.allow(lvl) && c.Core.Enabled(lvl)
}

func (c *filteredCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *filteredCore) With(fields []zapcore.Field) zapcore.Core {
	return &filteredCore{Core: c.Core.With(fields), allow: c.allow}
}
