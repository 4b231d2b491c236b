package api

import (
	"net/http"
	"strings"
)

func lastPathSegment(path, prefix string) string {
	return pathSuffix(path, prefix)
}

// handleQueueTwiml renders the initial speech-gather played the moment a
// Queue call connects.
func (s *Server) handleQueueTwiml(w http.ResponseWriter, r *http.Request) {
	id := lastPathSegment(r.URL.Path, "/api/queue/twiml/")
	writeXML(w, s.queueAgent.InitialGatherMarkup(id))
}

// handleQueueIVR processes one IVR turn. Registered under both
// /api/queue/ivr/ (the URL the agent itself builds) and
// /api/queue/ivr-handler/ (the external interface's published alias).
func (s *Server) handleQueueIVR(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	id := trimAnyPrefix(r.URL.Path, "/api/queue/ivr-handler/", "/api/queue/ivr/")
	heard := r.FormValue("SpeechResult")
	writeXML(w, s.queueAgent.HandleIVR(r.Context(), id, heard))
}

// handleQueueHoldLoop re-renders the hold loop on a speech-gather timeout.
// Registered under both /api/queue/hold/ and /api/queue/hold-loop/.
func (s *Server) handleQueueHoldLoop(w http.ResponseWriter, r *http.Request) {
	id := trimAnyPrefix(r.URL.Path, "/api/queue/hold-loop/", "/api/queue/hold/")
	writeXML(w, s.queueAgent.HandleHoldLoopTimeout(id))
}

// handleQueueHumanCheck applies the human-speech heuristic to a hold-loop
// gather result.
func (s *Server) handleQueueHumanCheck(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	id := lastPathSegment(r.URL.Path, "/api/queue/human-check/")
	heard := r.FormValue("SpeechResult")
	writeXML(w, s.queueAgent.HandleHumanCheck(r.Context(), id, heard))
}

// handleQueueStatusCallback processes the carrier's call-status callback
// for a Queue session. Registered under both /api/queue/webhook/{id} (the
// URL the agent builds) and /api/queue/status-callback (the external
// interface's published, session-less alias, which the carrier would only
// reach if configured at the account level rather than per-call).
func (s *Server) handleQueueStatusCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	// No reconciliation action beyond acknowledging: the Queue agent's own
	// hold ticker and IVR/human-check handlers drive all phase transitions.
	okStatus(w)
}

func trimAnyPrefix(path string, prefixes ...string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return pathSuffix(path, p)
		}
	}
	return path
}
