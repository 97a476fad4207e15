package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabeledPattern_Find(t *testing.T) {
	cfg := DefaultConfig()
	name, err := NewLabeledPattern(cfg.Labeled.Name, looksLikeFullName)
	require.NoError(t, err)

	tests := []struct {
		line string
		want []string
	}{
		{"Name: Jane Doe", []string{"Jane Doe"}},
		{"STUDENT jane doe", []string{"jane doe"}},
		{"contact:Al Li", []string{"Al Li"}},
		{"Name: Jane", nil},
		{"Jane Doe", nil},
		{"Name: 12345678", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, name.Find(tt.line))
		})
	}
}

func TestLabeledPattern_IDRange(t *testing.T) {
	id, err := NewLabeledPattern(DefaultConfig().Labeled.ID, nil)
	require.NoError(t, err)

	assert.Nil(t, id.Find("ID: 12345"), "five digits is too short")
	assert.Equal(t, []string{"123456"}, id.Find("ID: 123456"))
	assert.Equal(t, []string{"123456789012"}, id.Find("id 12345678901234"), "longer runs are truncated at twelve")
}

func TestBareHeuristic_Find(t *testing.T) {
	h, err := NewBareHeuristic(`[A-Z][a-z]+\s+[A-Z][a-z]+`, 5, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"Jane Doe"}, h.Find("Jane Doe"))
	assert.Equal(t, []string{"Jane Doe", "Mark Twain"}, h.Find("Jane Doe Mark Twain"))
	assert.Equal(t, []string{"Mark Twain"}, h.Find("Jane Doe. Mark Twain\n"))
	assert.Nil(t, h.Find("jane doe"))
	assert.Nil(t, h.Find(""))
}

func TestBareHeuristic_NoLimit(t *testing.T) {
	h, err := NewBareHeuristic(`\b[0-9]{8,12}\b`, 0, false)
	require.NoError(t, err)

	got := h.Find("11111111 22222222 33333333 44444444 55555555 66666666")
	assert.Len(t, got, 6)
}

func TestBareHeuristic_WordBoundary(t *testing.T) {
	h, err := NewBareHeuristic(DefaultConfig().Fallback.ID, 5, false)
	require.NoError(t, err)

	assert.Nil(t, h.Find("1234567890123"), "thirteen digits is not a standalone id")
	assert.Nil(t, h.Find("A12345678"), "digits glued to letters are not standalone")
	assert.Equal(t, []string{"12345678"}, h.Find("(12345678)"))
}
