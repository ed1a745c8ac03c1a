package panel

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hassviz/hassviz/internal/streaming"
)

// handleSSEGlobal streams all registry and index events to the client.
func (s *Server) handleSSEGlobal(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.EventFilter{})
}

// handleSSEAutomation streams events for one automation.
func (s *Server) handleSSEAutomation(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.EventFilter{AutomationID: r.PathValue("id")})
}

// serveSSE is the common Server-Sent Events implementation.
func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, filter streaming.EventFilter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
			flusher.Flush()
		}
	}
}

func themeChangedEvent(name string) streaming.StreamEvent {
	return streaming.StreamEvent{
		EventType: streaming.EventThemeChanged,
		Payload:   map[string]any{"theme": name},
	}
}
