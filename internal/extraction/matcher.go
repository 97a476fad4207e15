package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LabeledPattern matches a keyword label followed by a captured value on a
// single line. At most one value is returned per call.
type LabeledPattern struct {
	re     *regexp.Regexp
	accept func(string) bool
}

// NewLabeledPattern compiles expr, which must contain a capture group. accept
// may be nil to take every match.
func NewLabeledPattern(expr string, accept func(string) bool) (*LabeledPattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("pattern %q has no capture group", expr)
	}
	return &LabeledPattern{re: re, accept: accept}, nil
}

// Find returns the trimmed value of the first match in line, if accepted.
func (p *LabeledPattern) Find(line string) []string {
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	value := strings.TrimSpace(m[1])
	if p.accept != nil && !p.accept(value) {
		return nil
	}
	return []string{value}
}

// BareHeuristic scans whole text for unlabeled values, keeping the first
// limit matches. limit <= 0 means no cap.
type BareHeuristic struct {
	re    *regexp.Regexp
	limit int
	// trailingSpace requires each match to be followed by whitespace or the
	// end of text.
	trailingSpace bool
}

// NewBareHeuristic compiles expr.
func NewBareHeuristic(expr string, limit int, trailingSpace bool) (*BareHeuristic, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &BareHeuristic{re: re, limit: limit, trailingSpace: trailingSpace}, nil
}

// Find returns non-overlapping matches in scan order.
func (h *BareHeuristic) Find(text string) []string {
	if !h.trailingSpace {
		return h.re.FindAllString(text, h.n())
	}

	// RE2 has no lookahead. A rejected candidate restarts the scan one rune
	// after its start so a later, shorter match can still be found.
	var out []string
	for offset := 0; offset < len(text); {
		loc := h.re.FindStringIndex(text[offset:])
		if loc == nil {
			break
		}
		start, end := offset+loc[0], offset+loc[1]
		if end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(r) {
				_, size := utf8.DecodeRuneInString(text[start:])
				offset = start + size
				continue
			}
		}
		out = append(out, text[start:end])
		if h.limit > 0 && len(out) == h.limit {
			break
		}
		if end == start {
			end++
		}
		offset = end
	}
	return out
}

func (h *BareHeuristic) n() int {
	if h.limit <= 0 {
		return -1
	}
	return h.limit
}

// looksLikeFullName accepts "First Last" shaped captures.
func looksLikeFullName(s string) bool {
	return len(s) > 2 && strings.Contains(s, " ")
}
