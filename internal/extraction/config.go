package extraction

import (
	"fmt"

	"github.com/fyrsmithlabs/docmatch/internal/config"
)

// Config holds the extraction patterns. It is read from the "extraction"
// section of the docmatch config file; empty strings disable a rule.
type Config struct {
	Labeled  LabeledConfig  `koanf:"labeled"`
	Fallback FallbackConfig `koanf:"fallback"`
}

// LabeledConfig holds the line patterns. Each must have one capture group
// holding the value.
type LabeledConfig struct {
	Name  string `koanf:"name"`
	ID    string `koanf:"id"`
	Phone string `koanf:"phone"`
}

// FallbackConfig holds the whole-text patterns used when a field has no
// labeled match. Phones have none.
type FallbackConfig struct {
	Name  string `koanf:"name"`
	ID    string `koanf:"id"`
	Limit int    `koanf:"limit"`
}

// DefaultConfig returns the stock patterns. Whitespace classes include
// Unicode space separators such as NBSP, which OCR output often carries.
func DefaultConfig() Config {
	return Config{
		Labeled: LabeledConfig{
			Name:  `(?i)(?:name|student|contact)[\s\p{Zs}]*:?[\s\p{Zs}]*([a-zA-Z\s\p{Zs}]{2,30})`,
			ID:    `(?i)(?:id|student[\s\p{Zs}]*id|number)[\s\p{Zs}]*:?[\s\p{Zs}]*([0-9]{6,12})`,
			Phone: `(?i)(?:phone|tel|telephone)[\s\p{Zs}]*:?[\s\p{Zs}]*([()\-\s\p{Zs}0-9]{10,20})`,
		},
		Fallback: FallbackConfig{
			Name:  `[A-Z][a-z]+[\s\p{Zs}]+[A-Z][a-z]+`,
			ID:    `\b[0-9]{8,12}\b`,
			Limit: 5,
		},
	}
}

// LoadConfig returns the defaults overlaid with the "extraction" section of cfg.
func LoadConfig(cfg *config.Config) (Config, error) {
	out := DefaultConfig()
	if cfg != nil {
		if err := cfg.Section("extraction", &out); err != nil {
			return Config{}, err
		}
	}
	if out.Fallback.Limit < 0 {
		return Config{}, fmt.Errorf("extraction.fallback.limit must be >= 0, got %d", out.Fallback.Limit)
	}
	return out, nil
}

// Rules compiles the configuration into an ordered rule list: labeled
// name, id, phone, then fallback name and id.
func (c Config) Rules() ([]Rule, error) {
	var rules []Rule

	labeled := []struct {
		field  Field
		expr   string
		accept func(string) bool
	}{
		{FieldNames, c.Labeled.Name, looksLikeFullName},
		{FieldIDs, c.Labeled.ID, nil},
		{FieldPhones, c.Labeled.Phone, nil},
	}
	for _, l := range labeled {
		if l.expr == "" {
			continue
		}
		m, err := NewLabeledPattern(l.expr, l.accept)
		if err != nil {
			return nil, fmt.Errorf("labeled %s pattern: %w", l.field, err)
		}
		rules = append(rules, Rule{Field: l.field, Tier: TierLabeled, Matcher: m})
	}

	if c.Fallback.Name != "" {
		m, err := NewBareHeuristic(c.Fallback.Name, c.Fallback.Limit, true)
		if err != nil {
			return nil, fmt.Errorf("fallback %s pattern: %w", FieldNames, err)
		}
		rules = append(rules, Rule{Field: FieldNames, Tier: TierFallback, Matcher: m})
	}
	if c.Fallback.ID != "" {
		m, err := NewBareHeuristic(c.Fallback.ID, c.Fallback.Limit, false)
		if err != nil {
			return nil, fmt.Errorf("fallback %s pattern: %w", FieldIDs, err)
		}
		rules = append(rules, Rule{Field: FieldIDs, Tier: TierFallback, Matcher: m})
	}

	return rules, nil
}
