package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/docmatch/internal/config"
	"github.com/fyrsmithlabs/docmatch/internal/logging"
	"github.com/fyrsmithlabs/docmatch/internal/telemetry"
)

type call struct {
	op    string
	value string
	at    time.Time
}

type fakeEntry struct {
	env         *fakeEnv
	text        string
	selected    bool
	selectCalls int
	selectErr   error
}

func (e *fakeEntry) DisplayText() string { return e.text }

func (e *fakeEntry) IsSelected() bool {
	e.env.mu.Lock()
	defer e.env.mu.Unlock()
	return e.selected
}

func (e *fakeEntry) Select() error {
	e.env.mu.Lock()
	defer e.env.mu.Unlock()
	e.selectCalls++
	e.env.calls = append(e.env.calls, call{op: "select", value: e.text, at: time.Now()})
	if e.selectErr != nil {
		return e.selectErr
	}
	e.selected = true
	return nil
}

type fakeField struct{}

type fakeEnv struct {
	mu       sync.Mutex
	entries  []*fakeEntry
	calls    []call
	progress []string

	noField    bool
	nilField   bool
	setErr     error
	listErr    error
	panicOn    string
	blockOn    string
	release    chan struct{}
	onProgress func(msg string)
}

func newFakeEnv(texts ...string) *fakeEnv {
	env := &fakeEnv{release: make(chan struct{})}
	for _, t := range texts {
		env.entries = append(env.entries, &fakeEntry{env: env, text: t})
	}
	return env
}

func (f *fakeEnv) LocateSearchField(context.Context) (SearchField, error) {
	if f.noField {
		return nil, ErrSearchFieldNotFound
	}
	if f.nilField {
		return nil, nil
	}
	return fakeField{}, nil
}

func (f *fakeEnv) SetSearchValue(_ context.Context, _ SearchField, value string) error {
	if value != "" && value == f.panicOn {
		panic("renderer crashed")
	}
	if value != "" && value == f.blockOn {
		// Ignores ctx on purpose: a misbehaving UI adapter.
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "set", value: value, at: time.Now()})
	return f.setErr
}

func (f *fakeEnv) ListCandidateEntries(context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "list", at: time.Now()})
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Entry, len(f.entries))
	for i, e := range f.entries {
		out[i] = e
	}
	return out, nil
}

func (f *fakeEnv) ReportProgress(msg string) {
	f.mu.Lock()
	f.progress = append(f.progress, msg)
	hook := f.onProgress
	f.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
}

func (f *fakeEnv) callsFor(value string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.value == value {
			out = append(out, c)
		}
	}
	return out
}

var fastDelays = Delays{ItemTimeout: time.Second}

func assertInvariant(t *testing.T, ids []string, r *BatchResult) {
	t.Helper()
	assert.Equal(t, len(ids), r.Total)
	assert.Equal(t, r.Total, len(r.Matched)+len(r.Failed))
	require.Len(t, r.Outcomes, len(ids))
	for i, o := range r.Outcomes {
		assert.Equal(t, ids[i], o.ID)
		assert.Equal(t, i+1, o.Index)
		assert.True(t, o.State.Terminal(), "outcome %d state %s", i, o.State)
	}
}

func TestMatchBatch_ClassifiesEveryIdentifier(t *testing.T) {
	env := newFakeEnv("11111111 Jane Doe", "33333333 Bob Ray")
	o := New(fastDelays)
	ids := []string{"11111111", "22222222", "33333333"}

	result, err := o.MatchBatch(context.Background(), ids, env)
	require.NoError(t, err)

	assertInvariant(t, ids, result)
	assert.Equal(t, []string{"11111111", "33333333"}, result.Matched)
	assert.Equal(t, []string{"22222222"}, result.Failed)
	assert.Equal(t, ReasonNoEntry, result.Outcomes[1].Reason)
	assert.Equal(t, StateResultsRendered, result.Outcomes[1].Stage)
	assert.Equal(t, "33333333 Bob Ray", result.Outcomes[2].Entry)
	assert.Equal(t, []string{"(1/3): 11111111", "(2/3): 22222222", "(3/3): 33333333"}, env.progress)
	assert.NotEmpty(t, result.BatchID)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
	assert.False(t, result.Complete())
}

func TestMatchBatch_Empty(t *testing.T) {
	env := newFakeEnv()
	result, err := New(fastDelays).MatchBatch(context.Background(), nil, env)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Total)
	assert.NotNil(t, result.Matched)
	assert.NotNil(t, result.Failed)
	assert.Empty(t, env.progress)
	assert.True(t, result.Complete())
}

func TestMatchBatch_PreselectedEntryNotReselected(t *testing.T) {
	env := newFakeEnv("12345678 Jane Doe")
	env.entries[0].selected = true

	result, err := New(fastDelays).MatchBatch(context.Background(), []string{"12345678"}, env)
	require.NoError(t, err)

	assert.Equal(t, []string{"12345678"}, result.Matched)
	assert.True(t, result.Outcomes[0].AlreadySelected)
	assert.Equal(t, 0, env.entries[0].selectCalls)
}

func TestMatchBatch_SelectsFirstContainingEntry(t *testing.T) {
	env := newFakeEnv("99999999 Other", "12345678 First", "12345678 Second")

	result, err := New(fastDelays).MatchBatch(context.Background(), []string{"12345678"}, env)
	require.NoError(t, err)

	assert.Equal(t, []string{"12345678"}, result.Matched)
	assert.Equal(t, 0, env.entries[0].selectCalls)
	assert.Equal(t, 1, env.entries[1].selectCalls)
	assert.Equal(t, 0, env.entries[2].selectCalls)
	assert.True(t, env.entries[1].selected)
}

func TestMatchBatch_MissingSearchField(t *testing.T) {
	for _, nilHandle := range []bool{false, true} {
		env := newFakeEnv("11111111", "22222222")
		env.noField = !nilHandle
		env.nilField = nilHandle
		ids := []string{"11111111", "22222222"}

		result, err := New(fastDelays).MatchBatch(context.Background(), ids, env)
		require.NoError(t, err)

		assertInvariant(t, ids, result)
		assert.Equal(t, ids, result.Failed)
		for _, o := range result.Outcomes {
			assert.Equal(t, ReasonNoSearchField, o.Reason)
			assert.Equal(t, StateIdle, o.Stage)
		}
		assert.Len(t, env.progress, 2, "batch continues past a missing field")
	}
}

func TestMatchBatch_PanicIsolated(t *testing.T) {
	env := newFakeEnv("11111111", "22222222", "33333333")
	env.panicOn = "22222222"
	ids := []string{"11111111", "22222222", "33333333"}

	result, err := New(fastDelays).MatchBatch(context.Background(), ids, env)
	require.NoError(t, err)

	assertInvariant(t, ids, result)
	assert.Equal(t, []string{"11111111", "33333333"}, result.Matched)
	assert.Equal(t, ReasonPanic, result.Outcomes[1].Reason)
	assert.Contains(t, result.Outcomes[1].Detail, "renderer crashed")
}

func TestMatchBatch_EnvironmentErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeEnv)
		stage State
	}{
		{"set fails", func(f *fakeEnv) { f.setErr = errors.New("input detached") }, StateSearching},
		{"list fails", func(f *fakeEnv) { f.listErr = errors.New("list gone") }, StateResultsRendered},
		{"select fails", func(f *fakeEnv) { f.entries[0].selectErr = errors.New("click lost") }, StateResultsRendered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newFakeEnv("12345678 Jane Doe")
			tt.setup(env)

			result, err := New(fastDelays).MatchBatch(context.Background(), []string{"12345678"}, env)
			require.NoError(t, err)

			require.Equal(t, []string{"12345678"}, result.Failed)
			assert.Equal(t, ReasonEnvironment, result.Outcomes[0].Reason)
			assert.Equal(t, tt.stage, result.Outcomes[0].Stage)
		})
	}
}

func TestMatchBatch_FullyBrokenEnvironment(t *testing.T) {
	env := newFakeEnv()
	env.setErr = errors.New("everything is broken")
	ids := []string{"1", "2", "3", "4"}

	result, err := New(fastDelays).MatchBatch(context.Background(), ids, env)
	require.NoError(t, err)

	assertInvariant(t, ids, result)
	assert.Equal(t, ids, result.Failed)
	assert.Empty(t, result.Matched)
}

func TestMatchBatch_ItemTimeout(t *testing.T) {
	env := newFakeEnv("11111111", "22222222")
	env.blockOn = "11111111"
	t.Cleanup(func() { close(env.release) })

	o := New(Delays{ItemTimeout: 50 * time.Millisecond})
	ids := []string{"11111111", "22222222"}

	result, err := o.MatchBatch(context.Background(), ids, env)
	require.NoError(t, err)

	assertInvariant(t, ids, result)
	assert.Equal(t, ReasonTimeout, result.Outcomes[0].Reason)
	assert.GreaterOrEqual(t, result.Outcomes[0].Elapsed, 50*time.Millisecond)

	// The first call never returns, so the second identifier times out
	// waiting for it instead of driving the list alongside it.
	assert.Equal(t, ReasonTimeout, result.Outcomes[1].Reason)
	assert.Contains(t, result.Outcomes[1].Detail, "previous identifier")
	assert.Empty(t, env.callsFor("22222222"))
	assert.Equal(t, []string{"(1/2): 11111111"}, env.progress)
}

func TestMatchBatch_TimedOutItemDoesNotOverlapNext(t *testing.T) {
	env := newFakeEnv("11111111", "22222222")
	env.blockOn = "11111111"
	env.onProgress = func(msg string) {
		if msg == "(1/2): 11111111" {
			// Unblock the first identifier 100ms into the second one.
			time.AfterFunc(500*time.Millisecond, func() { close(env.release) })
		}
	}

	o := New(Delays{
		SearchSettle: 200 * time.Millisecond,
		ItemTimeout:  400 * time.Millisecond,
	})
	ids := []string{"11111111", "22222222"}

	result, err := o.MatchBatch(context.Background(), ids, env)
	require.NoError(t, err)

	assertInvariant(t, ids, result)
	assert.Equal(t, ReasonTimeout, result.Outcomes[0].Reason)
	assert.Equal(t, []string{"22222222"}, result.Matched)

	env.mu.Lock()
	calls := append([]call(nil), env.calls...)
	env.mu.Unlock()

	var ops []string
	for _, c := range calls {
		ops = append(ops, c.op+" "+c.value)
	}
	require.Equal(t, []string{
		"set ",
		"set 11111111",
		"set ",
		"set 22222222",
		"list ",
		"select 22222222",
	}, ops, "the late write lands before the next identifier starts")
}

func TestMatchBatch_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newFakeEnv("11111111", "22222222", "33333333")
	env.onProgress = func(msg string) {
		if msg == "(2/3): 22222222" {
			cancel()
		}
	}
	ids := []string{"11111111", "22222222", "33333333"}

	result, err := New(fastDelays).MatchBatch(ctx, ids, env)
	require.NoError(t, err)

	assertInvariant(t, ids, result)
	assert.Equal(t, []string{"11111111"}, result.Matched)
	assert.Equal(t, []string{"22222222", "33333333"}, result.Failed)
	assert.Equal(t, ReasonCancelled, result.Outcomes[1].Reason)
	assert.Equal(t, ReasonCancelled, result.Outcomes[2].Reason)
	assert.Len(t, env.progress, 2, "identifiers after cancellation are not started")
}

func TestMatchBatch_RejectsConcurrentBatch(t *testing.T) {
	env := newFakeEnv("11111111")
	env.blockOn = "11111111"
	started := make(chan struct{})
	var once sync.Once
	env.onProgress = func(string) { once.Do(func() { close(started) }) }

	o := New(Delays{ItemTimeout: 5 * time.Second})

	done := make(chan *BatchResult, 1)
	go func() {
		r, _ := o.MatchBatch(context.Background(), []string{"11111111"}, env)
		done <- r
	}()

	<-started
	_, err := o.MatchBatch(context.Background(), []string{"11111111"}, newFakeEnv())
	assert.ErrorIs(t, err, ErrBatchInProgress)

	close(env.release)
	first := <-done
	require.NotNil(t, first)
	assert.Equal(t, []string{"11111111"}, first.Matched)

	again, err := o.MatchBatch(context.Background(), nil, newFakeEnv())
	require.NoError(t, err, "lock is released after the batch")
	assert.Equal(t, 0, again.Total)
}

func TestMatchBatch_SequentialSettleTiming(t *testing.T) {
	d := Delays{
		ClearSettle:  20 * time.Millisecond,
		SearchSettle: 40 * time.Millisecond,
		SelectSettle: 20 * time.Millisecond,
		Throttle:     30 * time.Millisecond,
		ItemTimeout:  time.Second,
	}
	env := newFakeEnv("11111111 A", "22222222 B", "33333333 C")
	ids := []string{"11111111", "22222222", "33333333"}

	result, err := New(d).MatchBatch(context.Background(), ids, env)
	require.NoError(t, err)
	require.Equal(t, ids, result.Matched)

	env.mu.Lock()
	calls := append([]call(nil), env.calls...)
	env.mu.Unlock()

	// Each identifier produces: set "", set id, list, select.
	require.Len(t, calls, 4*len(ids))
	for i := range ids {
		clear, set, list, sel := calls[4*i], calls[4*i+1], calls[4*i+2], calls[4*i+3]
		assert.Equal(t, "", clear.value)
		assert.Equal(t, ids[i], set.value)
		assert.Equal(t, "list", list.op)
		assert.Equal(t, "select", sel.op)

		assert.GreaterOrEqual(t, set.at.Sub(clear.at), d.ClearSettle)
		assert.GreaterOrEqual(t, list.at.Sub(set.at), d.SearchSettle)

		if i+1 < len(ids) {
			next := calls[4*(i+1)]
			assert.GreaterOrEqual(t, next.at.Sub(sel.at), d.SelectSettle+d.Throttle,
				"identifier %d started before %d settled", i+2, i+1)
		}
	}
}

func TestRetry_OnlyFailedSubset(t *testing.T) {
	env := newFakeEnv("11111111")
	o := New(fastDelays)

	first, err := o.MatchBatch(context.Background(), []string{"11111111", "22222222"}, env, ForDocument(4))
	require.NoError(t, err)
	require.Equal(t, []string{"22222222"}, first.Failed)
	assert.Equal(t, 4, first.DocumentID)

	env.entries = append(env.entries, &fakeEntry{env: env, text: "22222222"})

	second, err := o.Retry(context.Background(), first, env)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Total)
	assert.Equal(t, []string{"22222222"}, second.Matched)
	assert.Equal(t, first.BatchID, second.RetryOf)
	assert.Equal(t, 4, second.DocumentID)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestMatchBatch_SpansAndLogs(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	tl := logging.NewTestLogger()
	env := newFakeEnv("11111111")

	o := New(fastDelays, WithTracer(tt.Tracer("test")), WithLogger(tl.Logger))
	_, err := o.MatchBatch(context.Background(), []string{"11111111", "22222222"}, env)
	require.NoError(t, err)

	tt.AssertSpanExists(t, "match.batch")
	tt.AssertSpanAttribute(t, "match.batch", "match.total", int64(2))
	tt.AssertSpanAttribute(t, "match.batch", "match.failed", int64(1))
	tt.AssertSpanError(t, "match.batch")
	assert.Len(t, tt.SpansByName("match.item"), 2)

	tl.AssertLogged(t, zapcore.InfoLevel, "match batch started")
	tl.AssertLogged(t, zapcore.WarnLevel, "identifier not matched")
	tl.AssertLogged(t, zapcore.DebugLevel, "identifier matched")
	tl.AssertField(t, "identifier not matched", "id", "****2222")
	tl.AssertNoPersonalData(t)
}

func TestMatchBatch_Metrics(t *testing.T) {
	m := NewMetrics()
	assert.Same(t, m, NewMetrics(), "metrics are registered once")

	before := testutil.ToFloat64(m.ItemsTotal.WithLabelValues(string(StateFailed), string(ReasonNoEntry)))

	o := New(fastDelays, WithMetrics(m))
	_, err := o.MatchBatch(context.Background(), []string{"404"}, newFakeEnv())
	require.NoError(t, err)

	after := testutil.ToFloat64(m.ItemsTotal.WithLabelValues(string(StateFailed), string(ReasonNoEntry)))
	assert.Equal(t, before+1, after)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.BatchesInFlight))
}

func TestDelaysFromConfig(t *testing.T) {
	assert.Equal(t, DefaultDelays(), DelaysFromConfig(config.Default().Matching))
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateSearching.Terminal())
	assert.False(t, StateResultsRendered.Terminal())
	assert.True(t, StateMatched.Terminal())
	assert.True(t, StateFailed.Terminal())
}
