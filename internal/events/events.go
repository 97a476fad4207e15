// Package events publishes document processing events over NATS.
//
// Events are published to subjects:
//   - <prefix>.documents.<document_id>.started
//   - <prefix>.documents.<document_id>.progress
//   - <prefix>.documents.<document_id>.failed
//   - <prefix>.documents.<document_id>.completed
//
// Publishing is best effort. A nil *Publisher is valid and drops every event,
// which is how event publishing is disabled.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmatch/internal/config"
	"github.com/fyrsmithlabs/docmatch/internal/logging"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
)

// Kind is the last subject token of an event.
type Kind string

const (
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindFailed    Kind = "failed"
	KindCompleted Kind = "completed"
)

// Event is the JSON payload of every published message.
type Event struct {
	Kind       Kind                      `json:"kind"`
	DocumentID int                       `json:"document_id"`
	Message    string                    `json:"message,omitempty"`
	Batch      *orchestrator.BatchResult `json:"batch,omitempty"`
	Timestamp  time.Time                 `json:"timestamp"`
}

// Publisher sends events to NATS.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
	owned  bool
}

// NewPublisher wraps an existing connection. The caller keeps ownership of nc.
func NewPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *Publisher {
	if prefix == "" {
		prefix = "docmatch"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{nc: nc, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Connect dials NATS per cfg. It returns a nil Publisher when events are
// disabled.
func Connect(cfg config.EventsConfig, logger *logging.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("docmatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	p := NewPublisher(nc, cfg.SubjectPrefix, logger)
	p.owned = true
	p.logger.Info(context.Background(), "connected to NATS", zap.String("url", cfg.URL))
	return p, nil
}

// Close drains the connection if Connect opened it.
func (p *Publisher) Close() error {
	if p == nil || !p.owned {
		return nil
	}
	return p.nc.Drain()
}

// Subject returns the subject for a document event kind.
func (p *Publisher) Subject(doc int, kind Kind) string {
	return fmt.Sprintf("%s.documents.%d.%s", p.prefix, doc, kind)
}

// DocumentSubjects is the wildcard matching every event of a document.
func (p *Publisher) DocumentSubjects(doc int) string {
	return fmt.Sprintf("%s.documents.%d.*", p.prefix, doc)
}

// Publish sends ev. Failures are logged and returned.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	subject := p.Subject(ev.DocumentID, ev.Kind)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn(ctx, "event publish failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}
	return nil
}

// Progress publishes a progress message for a document.
func (p *Publisher) Progress(ctx context.Context, doc int, msg string) error {
	return p.Publish(ctx, Event{Kind: KindProgress, DocumentID: doc, Message: msg})
}

// Completed publishes the final batch of a document run.
func (p *Publisher) Completed(ctx context.Context, doc int, msg string, batch *orchestrator.BatchResult) error {
	return p.Publish(ctx, Event{Kind: KindCompleted, DocumentID: doc, Message: msg, Batch: batch})
}

// Subscribe delivers every event of doc to ch until the returned
// subscription is unsubscribed.
func (p *Publisher) Subscribe(doc int, ch chan *nats.Msg) (*nats.Subscription, error) {
	if p == nil {
		return nil, fmt.Errorf("event publishing disabled")
	}
	return p.nc.ChanSubscribe(p.DocumentSubjects(doc), ch)
}

// Decode parses a message published by Publish.
func Decode(msg *nats.Msg) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event on %s: %w", msg.Subject, err)
	}
	return ev, nil
}
