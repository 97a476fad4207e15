package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docmatch/internal/config"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
)

func batch(id string, doc int, started time.Time) *orchestrator.BatchResult {
	return &orchestrator.BatchResult{
		BatchID:    id,
		DocumentID: doc,
		Matched:    []string{"987654321"},
		Failed:     []string{"123456789"},
		Total:      2,
		Outcomes: []orchestrator.Outcome{
			{ID: "987654321", Index: 1, State: orchestrator.StateMatched, Stage: orchestrator.StateResultsRendered},
			{ID: "123456789", Index: 2, State: orchestrator.StateFailed, Stage: orchestrator.StateResultsRendered, Reason: orchestrator.ReasonNoEntry},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func TestStore_SaveGet(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer s.Close()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(batch("b1", 4, start)))

	got, err := s.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.DocumentID)
	assert.Equal(t, []string{"987654321"}, got.Matched)
	assert.Equal(t, orchestrator.ReasonNoEntry, got.Outcomes[1].Reason)
	assert.True(t, got.StartedAt.Equal(start))

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListByDocument(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(batch("late", 1, base.Add(time.Hour))))
	require.NoError(t, s.Save(batch("early", 1, base)))
	require.NoError(t, s.Save(batch("other", 2, base)))
	require.NoError(t, s.Save(batch("doc10", 10, base)))

	got, err := s.ListByDocument(1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].BatchID)
	assert.Equal(t, "late", got[1].BatchID)

	got, err = s.ListByDocument(3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveReplacesIndex(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(batch("b1", 1, base)))
	require.NoError(t, s.Save(batch("b1", 2, base)))

	got, err := s.ListByDocument(1)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ListByDocument(2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_SaveRequiresID(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Save(nil))
	assert.Error(t, s.Save(&orchestrator.BatchResult{}))
}

func TestStore_Reopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(batch("b1", 1, time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get("b1")
	assert.NoError(t, err)
}

func TestOpenFromConfig(t *testing.T) {
	s, err := OpenFromConfig(config.StorageConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenFromConfig(config.StorageConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
