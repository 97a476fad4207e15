package roster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/docmatch/internal/logging"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
)

var people = []Person{
	{Name: "Sarah Johnson", ID: "987654321"},
	{Name: "Mike Johnson", ID: "123456789"},
	{Name: "Ana Lima", ID: "555000111", Selected: true},
}

func texts(t *testing.T, r *Roster) []string {
	t.Helper()
	entries, err := r.ListCandidateEntries(context.Background())
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.DisplayText()
	}
	return out
}

func TestRoster_SynchronousFilter(t *testing.T) {
	r := New(people)
	ctx := context.Background()
	field, err := r.LocateSearchField(ctx)
	require.NoError(t, err)

	require.NoError(t, r.SetSearchValue(ctx, field, "johnson"))
	assert.Equal(t, []string{"Sarah Johnson (987654321)", "Mike Johnson (123456789)"}, texts(t, r))

	require.NoError(t, r.SetSearchValue(ctx, field, "123456789"))
	assert.Equal(t, []string{"Mike Johnson (123456789)"}, texts(t, r))

	require.NoError(t, r.SetSearchValue(ctx, field, ""))
	assert.Len(t, texts(t, r), 3)
}

func TestRoster_AsyncRender(t *testing.T) {
	r := New(people, WithRenderLatency(30*time.Millisecond))
	defer r.Close()
	ctx := context.Background()
	field, _ := r.LocateSearchField(ctx)

	require.NoError(t, r.SetSearchValue(ctx, field, "lima"))
	assert.Len(t, texts(t, r), 3, "stale rendering visible before latency elapses")

	assert.Eventually(t, func() bool {
		got := texts(t, r)
		return len(got) == 1 && got[0] == "Ana Lima (555000111)"
	}, time.Second, 5*time.Millisecond)
}

func TestRoster_NewerValueSupersedesPending(t *testing.T) {
	r := New(people, WithRenderLatency(40*time.Millisecond))
	defer r.Close()
	ctx := context.Background()
	field, _ := r.LocateSearchField(ctx)

	require.NoError(t, r.SetSearchValue(ctx, field, "lima"))
	require.NoError(t, r.SetSearchValue(ctx, field, "sarah"))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, []string{"Sarah Johnson (987654321)"}, texts(t, r))
}

func TestRoster_SelectRecorded(t *testing.T) {
	r := New(people)
	ctx := context.Background()
	field, _ := r.LocateSearchField(ctx)
	require.NoError(t, r.SetSearchValue(ctx, field, "987654321"))

	entries, err := r.ListCandidateEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsSelected())
	require.NoError(t, entries[0].Select())
	assert.True(t, entries[0].IsSelected())

	assert.Equal(t, []string{"Sarah Johnson (987654321)"}, r.Selections())
	assert.True(t, r.People()[0].Selected)
	assert.False(t, people[0].Selected, "input slice is not mutated")
}

func TestRoster_ForeignField(t *testing.T) {
	a, b := New(people), New(people)
	field, _ := a.LocateSearchField(context.Background())
	assert.ErrorIs(t, b.SetSearchValue(context.Background(), field, "x"), ErrForeignField)
	assert.ErrorIs(t, a.SetSearchValue(context.Background(), "not a field", "x"), ErrForeignField)
}

func TestRoster_CancelledContext(t *testing.T) {
	r := New(people)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.LocateSearchField(ctx)
	assert.Error(t, err)
	_, err = r.ListCandidateEntries(ctx)
	assert.Error(t, err)
}

func TestRoster_ProgressLogged(t *testing.T) {
	tl := logging.NewTestLogger()
	r := New(people, WithLogger(tl.Logger))
	r.ReportProgress("Processing 1 of 2: 987654321")

	assert.Equal(t, []string{"Processing 1 of 2: 987654321"}, r.Progress())
	tl.AssertLogged(t, zapcore.DebugLevel, "roster progress")
}

func TestRoster_DrivenByOrchestrator(t *testing.T) {
	r := New(people, WithRenderLatency(5*time.Millisecond))
	defer r.Close()
	o := orchestrator.New(orchestrator.Delays{
		SearchSettle: 25 * time.Millisecond,
		ItemTimeout:  time.Second,
	})

	res, err := o.MatchBatch(context.Background(), []string{"987654321", "555000111", "000000000"}, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"987654321", "555000111"}, res.Matched)
	assert.Equal(t, []string{"000000000"}, res.Failed)
	assert.True(t, res.Outcomes[1].AlreadySelected)
	assert.Equal(t, []string{"Sarah Johnson (987654321)"}, r.Selections())
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[person]]
name = "Sarah Johnson"
id = "987654321"

[[person]]
name = "Ana Lima"
id = "555000111"
selected = true
`), 0600))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Person{
		{Name: "Sarah Johnson", ID: "987654321"},
		{Name: "Ana Lima", ID: "555000111", Selected: true},
	}, got)
}

func TestLoadFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name, ID, Selected\nSarah Johnson, 987654321, false\n,,\nAna Lima,555000111,true\n"), 0600))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Person{
		{Name: "Sarah Johnson", ID: "987654321"},
		{Name: "Ana Lima", ID: "555000111", Selected: true},
	}, got)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("foo,bar\n1,2\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("id,selected\n1,maybe\n"))
	assert.ErrorContains(t, err, "maybe")

	got, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFile("roster.json")
	assert.Error(t, err)
}

func TestPerson_DisplayText(t *testing.T) {
	assert.Equal(t, "Sarah Johnson (1)", Person{Name: "Sarah Johnson", ID: "1"}.DisplayText())
	assert.Equal(t, "Sarah Johnson", Person{Name: "Sarah Johnson"}.DisplayText())
	assert.Equal(t, "1", Person{ID: "1"}.DisplayText())
}
