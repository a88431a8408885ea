package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const sseHeartbeatInterval = 25 * time.Second

// handleEvents streams the caller's game events as server-sent events.
// Heartbeat comments keep intermediaries from closing the idle connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := s.hub.Subscribe(user.ID)
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			_, err := fmt.Fprint(w, ": heartbeat\n\n")
			if err != nil {
				return
			}

			flusher.Flush()

		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				slog.Error("failed to marshal event", "kind", ev.Kind, "error", err)
				continue
			}

			_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			if err != nil {
				return
			}

			flusher.Flush()
		}
	}
}
