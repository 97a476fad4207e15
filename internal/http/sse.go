package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
)

const heartbeatInterval = 30 * time.Second

// handleDocumentEvents streams a document's events via Server-Sent Events.
//
//	GET /api/v1/documents/{id}/events
//
//	event: progress
//	data: {"kind":"progress","document_id":3,"message":"OCR complete, parsing data..."}
//
//	event: completed
//	data: {"kind":"completed","document_id":3,"batch":{...}}
//
// The stream ends after a completed or failed event, or when the client
// disconnects.
func (s *Server) handleDocumentEvents(c echo.Context) error {
	doc, err := documentParam(c)
	if err != nil {
		return err
	}
	if s.deps.Publisher == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event publishing disabled")
	}

	msgChan := make(chan *nats.Msg, 16)
	sub, err := s.deps.Publisher.Subscribe(doc, msgChan)
	if err != nil {
		return s.httpError(c, err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgChan:
			kind := msg.Subject[strings.LastIndex(msg.Subject, ".")+1:]
			fmt.Fprintf(c.Response(), "event: %s\n", kind)
			fmt.Fprintf(c.Response(), "data: %s\n\n", string(msg.Data))
			c.Response().Flush()

			if kind == "completed" || kind == "failed" {
				return nil
			}

		case <-ticker.C:
			fmt.Fprintf(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}
