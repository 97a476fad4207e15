// Package roster provides an in-process searchable list of people that the
// matching orchestrator can drive. Filtering is asynchronous: a new search
// value is rendered only after a configurable latency, the way a web list
// re-renders after typing.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmatch/internal/logging"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
)

// ErrForeignField is returned when SetSearchValue is handed a field that
// this roster did not issue.
var ErrForeignField = errors.New("search field belongs to a different roster")

// Person is one row of the roster.
type Person struct {
	Name     string `toml:"name"`
	ID       string `toml:"id"`
	Selected bool   `toml:"selected"`
}

// DisplayText is what the list shows and what identifiers are matched
// against.
func (p Person) DisplayText() string {
	switch {
	case p.ID == "":
		return p.Name
	case p.Name == "":
		return p.ID
	default:
		return fmt.Sprintf("%s (%s)", p.Name, p.ID)
	}
}

// Option configures a Roster.
type Option func(*Roster)

// WithRenderLatency sets how long after SetSearchValue the filtered list
// becomes visible. Zero renders synchronously.
func WithRenderLatency(d time.Duration) Option {
	return func(r *Roster) { r.latency = d }
}

// WithLogger routes progress messages to the given logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Roster) { r.logger = l }
}

// Roster implements orchestrator.Environment over a fixed list of people.
// It is safe for concurrent use.
type Roster struct {
	latency time.Duration
	logger  *logging.Logger

	mu         sync.Mutex
	people     []*Person
	rendered   []*Person
	generation uint64
	timer      *time.Timer
	selections []string
	progress   []string
}

type searchField struct {
	owner *Roster
}

// New creates a roster showing all people, unfiltered.
func New(people []Person, opts ...Option) *Roster {
	r := &Roster{}
	for i := range people {
		p := people[i]
		r.people = append(r.people, &p)
	}
	r.rendered = r.people
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LocateSearchField implements orchestrator.Environment.
func (r *Roster) LocateSearchField(ctx context.Context) (orchestrator.SearchField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &searchField{owner: r}, nil
}

// SetSearchValue schedules a re-render filtered by value. The previous
// rendering stays visible until the latency elapses; a newer value
// supersedes any pending render.
func (r *Roster) SetSearchValue(ctx context.Context, field orchestrator.SearchField, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sf, ok := field.(*searchField)
	if !ok || sf.owner != r {
		return ErrForeignField
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	gen := r.generation
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.latency <= 0 {
		r.rendered = r.filterLocked(value)
		return nil
	}
	r.timer = time.AfterFunc(r.latency, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.generation == gen {
			r.rendered = r.filterLocked(value)
			r.timer = nil
		}
	})
	return nil
}

func (r *Roster) filterLocked(value string) []*Person {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return r.people
	}
	var out []*Person
	for _, p := range r.people {
		if strings.Contains(strings.ToLower(p.DisplayText()), needle) {
			out = append(out, p)
		}
	}
	return out
}

// ListCandidateEntries implements orchestrator.Environment.
func (r *Roster) ListCandidateEntries(ctx context.Context) ([]orchestrator.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]orchestrator.Entry, len(r.rendered))
	for i, p := range r.rendered {
		entries[i] = &entry{roster: r, person: p}
	}
	return entries, nil
}

// ReportProgress implements orchestrator.Environment.
func (r *Roster) ReportProgress(msg string) {
	r.mu.Lock()
	r.progress = append(r.progress, msg)
	r.mu.Unlock()
	if r.logger != nil {
		r.logger.Debug(context.Background(), "roster progress", zap.String("message", msg))
	}
}

// Selections returns the display text of every entry selected through this
// roster, in order.
func (r *Roster) Selections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.selections...)
}

// Progress returns the progress messages reported so far.
func (r *Roster) Progress() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.progress...)
}

// People returns a snapshot of every person with current selection state.
func (r *Roster) People() []Person {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Person, len(r.people))
	for i, p := range r.people {
		out[i] = *p
	}
	return out
}

// Close stops any pending render.
func (r *Roster) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

type entry struct {
	roster *Roster
	person *Person
}

func (e *entry) DisplayText() string {
	e.roster.mu.Lock()
	defer e.roster.mu.Unlock()
	return e.person.DisplayText()
}

func (e *entry) IsSelected() bool {
	e.roster.mu.Lock()
	defer e.roster.mu.Unlock()
	return e.person.Selected
}

func (e *entry) Select() error {
	e.roster.mu.Lock()
	defer e.roster.mu.Unlock()
	e.person.Selected = true
	e.roster.selections = append(e.roster.selections, e.person.DisplayText())
	return nil
}

var _ orchestrator.Environment = (*Roster)(nil)
