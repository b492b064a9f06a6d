package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// eventsKeepAlive is the interval of comment lines on idle event streams.
var eventsKeepAlive = 15 * time.Second

// sseWriter writes server-sent events, sending headers with the first one.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
}

// data writes v as a JSON data line.
func (s *sseWriter) data(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write("data: %s\n\n", b)
}

// event writes a named event with a JSON payload.
func (s *sseWriter) event(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write("event: %s\ndata: %s\n\n", name, b)
}

func (s *sseWriter) done() error { return s.write("data: [DONE]\n\n") }

func (s *sseWriter) comment(text string) error { return s.write(": %s\n\n", text) }

func (s *sseWriter) write(format string, args ...any) error {
	s.start()
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// eventsHandler godoc
// @Summary      Lifecycle events
// @Description  Streams download, load and generation events as server-sent events until the client disconnects.
// @Tags         system
// @Produce      text/event-stream
// @Router       /events [get]
func eventsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, unsubscribe := svc.Subscribe()
		defer unsubscribe()
		sse := newSSEWriter(w)
		if err := sse.comment("connected"); err != nil {
			return
		}
		tick := time.NewTicker(eventsKeepAlive)
		defer tick.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-shutdownCtx.Done():
				return
			case <-tick.C:
				if err := sse.comment("keep-alive"); err != nil {
					return
				}
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := sse.event(e.Name, e); err != nil {
					return
				}
			}
		}
	}
}
