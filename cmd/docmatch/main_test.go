package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
	"github.com/fyrsmithlabs/docmatch/internal/extraction"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
	"github.com/fyrsmithlabs/docmatch/internal/store"
)

// isolate points HOME at a temp dir so no user config or batch store leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *capture.Region
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "valid", input: "10,20,300,400", want: &capture.Region{X: 10, Y: 20, Width: 300, Height: 400}},
		{name: "spaces", input: " 1, 2, 3, 4 ", want: &capture.Region{X: 1, Y: 2, Width: 3, Height: 4}},
		{name: "too few", input: "1,2,3", wantErr: true},
		{name: "not a number", input: "1,2,x,4", wantErr: true},
		{name: "no area", input: "1,2,0,4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRegion(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCommand(t *testing.T) {
	isolate(t)

	t.Run("stdin", func(t *testing.T) {
		out, _, err := execute(t, "Name: John Smith\nID: 123456789\nPhone: (555) 123-4567\n", "extract", "-")
		require.NoError(t, err)

		var rec extraction.Record
		require.NoError(t, json.Unmarshal([]byte(out), &rec))
		assert.Equal(t, []string{"123456789"}, rec.IDs)
		assert.Len(t, rec.Names, 1)
		assert.Len(t, rec.Phones, 1)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scan.txt")
		require.NoError(t, os.WriteFile(path, []byte("Student ID: 987654321\n"), 0o600))

		out, _, err := execute(t, "", "extract", path)
		require.NoError(t, err)
		assert.Contains(t, out, "987654321")
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "", "extract", filepath.Join(t.TempDir(), "nope.txt"))
		assert.Error(t, err)
	})
}

func writeRoster(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "class.csv")
	content := "name,id,selected\nJohn Smith,123456789,false\nJane Doe,987654321,false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func zeroDelays(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CLEAR_SETTLE", "SEARCH_SETTLE", "SELECT_SETTLE", "THROTTLE"} {
		t.Setenv("DOCMATCH_MATCHING_"+k, "0s")
	}
}

func TestMatchAndRetryCommands(t *testing.T) {
	home := isolate(t)
	zeroDelays(t)
	rosterPath := writeRoster(t)

	out, _, err := execute(t, "", "match", "--roster", rosterPath, "--json", "123456789", "555000111")
	require.NoError(t, err)

	var batch orchestrator.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Equal(t, []string{"123456789"}, batch.Matched)
	assert.Equal(t, []string{"555000111"}, batch.Failed)
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 1, batch.DocumentID, "batches default to the first document")

	out, _, err = execute(t, "", "retry", "--roster", rosterPath, "--json", batch.BatchID)
	require.NoError(t, err)

	var retried orchestrator.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &retried))
	assert.Equal(t, batch.BatchID, retried.RetryOf)
	assert.Equal(t, 1, retried.Total)
	assert.Equal(t, []string{"555000111"}, retried.Failed)

	s, err := store.Open(filepath.Join(home, ".config", "docmatch", "batches"))
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(retried.BatchID)
	assert.NoError(t, err)

	listed, err := s.ListByDocument(1)
	require.NoError(t, err)
	assert.Len(t, listed, 2, "match and retry batches are filed under document 1")
}

func TestMatchRequiresRoster(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "", "match", "123456789")
	assert.Error(t, err)
}

func TestRetryUnknownBatch(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "", "retry", "--roster", writeRoster(t), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPrintBatchTable(t *testing.T) {
	var buf bytes.Buffer
	err := printBatch(&buf, &orchestrator.BatchResult{
		BatchID: "b1",
		Matched: []string{"1"},
		Failed:  []string{"2"},
		Total:   2,
		Outcomes: []orchestrator.Outcome{
			{ID: "1", Index: 1, State: orchestrator.StateMatched, Entry: "John Smith (1)"},
			{ID: "2", Index: 2, State: orchestrator.StateFailed, Reason: orchestrator.ReasonNoEntry},
		},
	}, false)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Batch b1: 1 matched, 1 failed of 2")
	assert.Contains(t, out, "John Smith (1)")
	assert.Contains(t, out, "no_matching_entry")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:")
}
