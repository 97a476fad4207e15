package events

import (
	"context"

	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
)

// ProgressSink decorates an Environment so each progress message is also
// published for the document. Publish failures never reach the caller.
type ProgressSink struct {
	orchestrator.Environment
	publisher *Publisher
	document  int
}

// NewProgressSink wraps env. A nil publisher makes the sink a pass-through.
func NewProgressSink(env orchestrator.Environment, p *Publisher, doc int) *ProgressSink {
	return &ProgressSink{Environment: env, publisher: p, document: doc}
}

// ReportProgress forwards msg to the wrapped Environment and publishes it.
func (s *ProgressSink) ReportProgress(msg string) {
	s.Environment.ReportProgress(msg)
	_ = s.publisher.Progress(context.Background(), s.document, msg)
}
