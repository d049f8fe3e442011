package web

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter frames events for a text/event-stream response and flushes
// after every frame, so each increment reaches the client as soon as it
// is known. Writes happen from a single goroutine per request; slow
// clients exert backpressure through the blocked Write, never through
// dropped or reordered frames.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent emits one frame: "event: <type>\ndata: <json>\n\n".
func (s *sseWriter) writeEvent(event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal sse data: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
