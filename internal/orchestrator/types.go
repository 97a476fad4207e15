package orchestrator

import (
	"time"

	"github.com/fyrsmithlabs/docmatch/internal/config"
)

// State is the position of one identifier in the match workflow.
//
//	Idle -> Searching -> ResultsRendered -> Matched | Failed
//
// Matched and Failed are terminal. There is no retry inside a batch.
type State string

const (
	StateIdle            State = "idle"
	StateSearching       State = "searching"
	StateResultsRendered State = "results_rendered"
	StateMatched         State = "matched"
	StateFailed          State = "failed"
)

// Terminal reports whether s ends the workflow for an identifier.
func (s State) Terminal() bool {
	return s == StateMatched || s == StateFailed
}

// Reason classifies why an identifier failed.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNoSearchField Reason = "no_search_field"
	ReasonNoEntry       Reason = "no_matching_entry"
	ReasonEnvironment   Reason = "environment_error"
	ReasonPanic         Reason = "panic"
	ReasonTimeout       Reason = "timeout"
	ReasonCancelled     Reason = "cancelled"
)

// Outcome is the classification of one identifier.
type Outcome struct {
	ID    string `json:"id"`
	Index int    `json:"index"` // 1-based position in the batch
	State State  `json:"state"`
	// Stage is the last non-terminal state reached before classification.
	Stage           State         `json:"stage"`
	Reason          Reason        `json:"reason,omitempty"`
	Detail          string        `json:"detail,omitempty"`
	Entry           string        `json:"entry,omitempty"`
	AlreadySelected bool          `json:"already_selected,omitempty"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Matched reports whether the identifier was matched.
func (o Outcome) Matched() bool {
	return o.State == StateMatched
}

// BatchResult holds the classification of every identifier in a batch.
// len(Matched)+len(Failed) == Total == number of input identifiers.
type BatchResult struct {
	BatchID    string    `json:"batch_id"`
	DocumentID int       `json:"document_id,omitempty"`
	RetryOf    string    `json:"retry_of,omitempty"`
	Matched    []string  `json:"matched"`
	Failed     []string  `json:"failed"`
	Total      int       `json:"total"`
	Outcomes   []Outcome `json:"outcomes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the batch ran.
func (r *BatchResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Complete reports whether every identifier was matched.
func (r *BatchResult) Complete() bool {
	return len(r.Failed) == 0
}

func (r *BatchResult) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Matched() {
		r.Matched = append(r.Matched, o.ID)
	} else {
		r.Failed = append(r.Failed, o.ID)
	}
}

// Delays are the fixed waits used to stay in step with an external list
// that never signals completion. Zero values skip the wait.
type Delays struct {
	ClearSettle  time.Duration // after clearing the search field
	SearchSettle time.Duration // after entering the identifier
	SelectSettle time.Duration // after selecting an entry
	Throttle     time.Duration // between identifiers, not after the last
	ItemTimeout  time.Duration // ceiling per identifier; <= 0 disables
}

// DefaultDelays returns the production timings.
func DefaultDelays() Delays {
	return Delays{
		ClearSettle:  300 * time.Millisecond,
		SearchSettle: 1200 * time.Millisecond,
		SelectSettle: 400 * time.Millisecond,
		Throttle:     500 * time.Millisecond,
		ItemTimeout:  5 * time.Second,
	}
}

// DelaysFromConfig converts the matching section of the config.
func DelaysFromConfig(cfg config.MatchingConfig) Delays {
	return Delays{
		ClearSettle:  cfg.ClearSettle.Duration(),
		SearchSettle: cfg.SearchSettle.Duration(),
		SelectSettle: cfg.SelectSettle.Duration(),
		Throttle:     cfg.Throttle.Duration(),
		ItemTimeout:  cfg.ItemTimeout.Duration(),
	}
}
