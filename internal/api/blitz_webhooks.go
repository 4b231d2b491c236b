package api

import (
	"net/http"
	"strings"

	"github.com/DeepNandre/friendlyy/internal/telephony"
)

// parseBlitzTwimlPath extracts {session}/{call} from
// /api/blitz/twiml/{session}/{call}.
func parseBlitzTwimlPath(path string) (sessionID, callID string, ok bool) {
	rest := strings.TrimPrefix(path, "/api/blitz/twiml/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// handleBlitzTwiml renders the call-control markup for a single Blitz
// business call: play the synthesized pitch (if any) then record the
// response, or just record if no audio was synthesized.
func (s *Server) handleBlitzTwiml(w http.ResponseWriter, r *http.Request) {
	sessionID, callID, ok := parseBlitzTwimlPath(r.URL.Path)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	recordAction := s.publicURL + "/api/blitz/recording-complete?session_id=" + sessionID + "&call_id=" + callID
	audioHash := r.URL.Query().Get("audio_hash")
	if audioHash == "" {
		writeXML(w, telephony.PlaybackScript("", recordAction))
		return
	}
	audioURL := s.publicURL + "/api/audio/" + audioHash
	writeXML(w, telephony.PlaybackScript(audioURL, recordAction))
}

// handleBlitzWebhook processes the carrier's call-status callback. The
// carrier delivers session/call identifiers as query parameters on the
// callback URL, not in the form body.
func (s *Server) handleBlitzWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	callID := r.URL.Query().Get("call_id")
	carrierSID := r.FormValue("CallSid")
	status := r.FormValue("CallStatus")

	s.reconciler.HandleStatus(r.Context(), sessionID, callID, carrierSID, status)
	okStatus(w)
}

// handleBlitzAMD processes the carrier's answering-machine-detection
// callback.
func (s *Server) handleBlitzAMD(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	callID := r.URL.Query().Get("call_id")
	carrierSID := r.FormValue("CallSid")
	answeredBy := r.FormValue("AnsweredBy")

	s.reconciler.HandleAMD(r.Context(), sessionID, callID, carrierSID, answeredBy)
	okStatus(w)
}

// handleBlitzRecordingComplete attaches the transcript/recording URL from
// the carrier's recording callback to the matching CallRecord.
func (s *Server) handleBlitzRecordingComplete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	callID := r.URL.Query().Get("call_id")
	carrierSID := r.FormValue("CallSid")
	transcript := r.FormValue("TranscriptionText")
	recordingURL := r.FormValue("RecordingUrl")

	s.reconciler.HandleRecordingComplete(r.Context(), sessionID, callID, carrierSID, transcript, recordingURL)
	okStatus(w)
}
