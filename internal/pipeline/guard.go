package pipeline

import (
	"errors"
	"sync"
)

// ErrAlreadyProcessing is returned when a document is already being
// processed.
var ErrAlreadyProcessing = errors.New("already processing a document")

// Guard admits at most one run per document at a time.
type Guard struct {
	mu     sync.Mutex
	active map[int]struct{}
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{active: make(map[int]struct{})}
}

// Acquire claims doc. The returned release must be called exactly once,
// typically with defer; further calls are no-ops.
func (g *Guard) Acquire(doc int) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[doc]; busy {
		return nil, ErrAlreadyProcessing
	}
	g.active[doc] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, doc)
			g.mu.Unlock()
		})
	}, nil
}

// Active reports whether doc is being processed.
func (g *Guard) Active(doc int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[doc]
	return ok
}
