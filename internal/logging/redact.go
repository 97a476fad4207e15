// internal/logging/redact.go
package logging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/docmatch/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	maxPatternLen = 200
	redacted      = "[REDACTED]"
)

// Secret logs only the length of a credential, e.g. "[REDACTED:32]", so an
// operator can tell a key was loaded without seeing it.
func Secret(key string, val config.Secret) zap.Field {
	return zap.String(key, fmt.Sprintf("[REDACTED:%d]", len(val.Value())))
}

// Count logs the number of items in a personal-data slice without its contents.
func Count(key string, items []string) zap.Field {
	return zap.Int(key+"_count", len(items))
}

// MaskedID logs a student identifier with all but its last four characters
// masked. Identifiers of four characters or fewer are masked entirely.
func MaskedID(key, id string) zap.Field {
	if len(id) <= 4 {
		return zap.String(key, strings.Repeat("*", len(id)))
	}
	return zap.String(key, strings.Repeat("*", len(id)-4)+id[len(id)-4:])
}

// RedactingEncoder wraps a zapcore.Encoder and masks fields by key (names,
// phones, credentials) and string values by pattern (bearer tokens, inline
// image data).
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]bool
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps an encoder with redaction rules.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	e := &RedactingEncoder{Encoder: base}
	if !cfg.Enabled {
		return e, nil
	}

	e.keys = make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		e.keys[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, re)
	}
	return e, nil
}

// hide writes the placeholder when key is sensitive and reports whether it
// did.
func (e *RedactingEncoder) hide(key string) bool {
	if !e.keys[strings.ToLower(key)] {
		return false
	}
	e.Encoder.AddString(key, redacted)
	return true
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.hide(key) {
		return
	}
	for _, re := range e.patterns {
		if re.MatchString(val) {
			e.Encoder.AddString(key, "[REDACTED:pattern]")
			return
		}
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if !e.hide(key) {
		e.AddString(key, string(val))
	}
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if !e.hide(key) {
		e.Encoder.AddBinary(key, val)
	}
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.hide(key) {
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddArray covers zap.Strings("phones", ...), the common shape for extracted fields.
func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.hide(key) {
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.hide(key) {
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry routes per-entry fields through the redacting wrapper. The
// wrapped encoder would otherwise add them to its own clone and skip
// redaction entirely.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	clone := e.Clone().(*RedactingEncoder)
	for i := range fields {
		fields[i].AddTo(clone)
	}
	return clone.Encoder.EncodeEntry(ent, nil)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		keys:     e.keys,
		patterns: e.patterns,
	}
}
