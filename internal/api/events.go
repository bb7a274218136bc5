package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"todoflow/pkg/event"
)

// handleEventList returns the caller's slice of the bus buffer. Task
// snapshots travel inside events, so the listing is scoped to the
// verified token subject like every other task surface.
func (s *Server) handleEventList(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	t := event.Type(r.URL.Query().Get("type"))
	events := []event.Event{}
	for _, e := range s.deps.Bus.Events(t) {
		if e.UserID() == user {
			events = append(events, e)
		}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleEventStream pushes the caller's live bus events over SSE until
// the client disconnects.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch := s.deps.Bus.Watch()
	defer s.deps.Bus.Unwatch(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			if e.UserID() != user {
				continue
			}
			payload, err := json.Marshal(e)
			if err != nil {
				s.log.Error().Err(err).Msg("marshal stream event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
