// Package sse implements the SSE Gateway: it turns an Event Bus queue into
// a chunked HTTP event stream, closing the stream when a terminal event for
// the subscribing agent kind is popped.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
)

const popTimeout = 30 * time.Second

// Stream writes the SSE response for sessionID until a terminal event for
// kind is popped, the client disconnects, or an unexpected error occurs.
// One request = one session subscription; it does not multiplex.
func Stream(w http.ResponseWriter, r *http.Request, bus *eventbus.Bus, kind models.AgentType, sessionID string, initial *models.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	if initial != nil {
		writeEvent(w, flusher, *initial)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event, ok, err := bus.Pop(ctx, sessionID, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("sse pop failed", "session_id", sessionID, "error", err)
			writeEvent(w, flusher, models.Event{
				Type:      "error",
				Data:      map[string]string{"message": err.Error()},
				Timestamp: time.Now(),
			})
			return
		}

		if !ok {
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
			continue
		}

		writeEvent(w, flusher, event)

		if models.IsTerminalEvent(kind, event.Type) {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event models.Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		payload = []byte(`{}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
	flusher.Flush()
}
