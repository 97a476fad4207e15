package extraction

import (
	"strings"
)

// PatternExtractor runs labeled rules line by line, then fallback rules over
// the whole text for any field that is still empty.
type PatternExtractor struct {
	labeled  []Rule
	fallback []Rule
}

// NewPatternExtractor builds an extractor from cfg.
func NewPatternExtractor(cfg Config) (*PatternExtractor, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	return NewPatternExtractorFromRules(rules), nil
}

// NewPatternExtractorFromRules builds an extractor from an explicit rule
// list. Labeled rules keep their relative order as line priority.
func NewPatternExtractorFromRules(rules []Rule) *PatternExtractor {
	e := &PatternExtractor{}
	for _, r := range rules {
		switch r.Tier {
		case TierFallback:
			e.fallback = append(e.fallback, r)
		default:
			e.labeled = append(e.labeled, r)
		}
	}
	return e
}

// Default returns an extractor with the stock patterns.
func Default() *PatternExtractor {
	e, err := NewPatternExtractor(DefaultConfig())
	if err != nil {
		panic("extraction: default patterns: " + err.Error())
	}
	return e
}

// Extract never fails. Missing fields come back as empty slices.
func (e *PatternExtractor) Extract(text string) Record {
	rec := NewRecord(text)

	for _, line := range splitLines(text) {
		for _, rule := range e.labeled {
			if values := rule.Matcher.Find(line); len(values) > 0 {
				rec.set(rule.Field, append(rec.Values(rule.Field), values[0]))
				break
			}
		}
	}

	for _, rule := range e.fallback {
		if len(rec.Values(rule.Field)) > 0 {
			continue
		}
		if values := rule.Matcher.Find(text); len(values) > 0 {
			rec.set(rule.Field, values)
		}
	}

	return rec
}

// splitLines returns the trimmed, non-empty lines of text.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
