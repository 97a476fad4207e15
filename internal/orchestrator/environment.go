package orchestrator

import (
	"context"
	"errors"
)

// ErrSearchFieldNotFound is returned by LocateSearchField when the list has
// no search input.
var ErrSearchFieldNotFound = errors.New("search field not found")

// SearchField is an opaque handle to the list's search input, owned by the
// Environment that returned it.
type SearchField interface{}

// Entry is one candidate row in the searchable list.
type Entry interface {
	DisplayText() string
	IsSelected() bool
	Select() error
}

// Environment drives an external searchable list. Rendering after
// SetSearchValue is asynchronous and has no completion signal, so callers
// wait fixed settle delays before reading entries.
//
// Implementations are not required to be safe for concurrent use; the
// orchestrator never issues overlapping calls, including after an item
// times out while a call is still blocked.
type Environment interface {
	// LocateSearchField returns the search input. A nil handle or
	// ErrSearchFieldNotFound means there is none.
	LocateSearchField(ctx context.Context) (SearchField, error)

	// SetSearchValue replaces the field's value and triggers re-filtering.
	SetSearchValue(ctx context.Context, field SearchField, value string) error

	// ListCandidateEntries returns the currently rendered entries in order.
	ListCandidateEntries(ctx context.Context) ([]Entry, error)

	// ReportProgress is fire-and-forget.
	ReportProgress(msg string)
}
