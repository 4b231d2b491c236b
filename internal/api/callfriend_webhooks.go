package api

import (
	"net/http"
	"strings"

	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/session"
	"github.com/DeepNandre/friendlyy/internal/telephony"
)

// callFriendTerminalStatus maps the carrier statuses that end a call
// without the Media Bridge ever connecting onto the matching session
// phase; "completed" is left alone since the Media Bridge itself marks
// the session COMPLETE when the AI leg's conversation_end (or an
// unrecoverable disconnect) tears the bridge down.
var callFriendTerminalStatus = map[string]models.CallFriendPhase{
	"no-answer": models.CallFriendNoAnswer,
	"busy":      models.CallFriendFailed,
	"failed":    models.CallFriendFailed,
	"canceled":  models.CallFriendFailed,
}

// handleCallFriendTwiml opens a bidirectional media stream to the Media
// Bridge for the live AI-to-friend conversation.
func (s *Server) handleCallFriendTwiml(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/call_friend/twiml/")
	wsScheme := "wss"
	host := strings.TrimPrefix(strings.TrimPrefix(s.publicURL, "https://"), "http://")
	if strings.HasPrefix(s.publicURL, "http://") {
		wsScheme = "ws"
	}
	streamURL := wsScheme + "://" + host + "/api/call_friend/media-stream/" + id
	writeXML(w, telephony.ConversationScript(streamURL, 180))
}

// handleCallFriendWebhook processes the carrier's call-status callback for
// a CallFriend session. The Media Bridge owns transcript/phase updates once
// it is bridging audio; this only observes terminal carrier states (no
// answer, busy, failed) that happen before the bridge ever connects.
func (s *Server) handleCallFriendWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	phase, terminal := callFriendTerminalStatus[strings.ToLower(r.FormValue("CallStatus"))]
	if terminal && sessionID != "" {
		var sess models.CallFriendSession
		if ok, err := s.store.Load(r.Context(), "session", sessionID, &sess); err == nil && ok {
			if sess.Phase != models.CallFriendComplete && sess.Phase != models.CallFriendFailed && sess.Phase != models.CallFriendNoAnswer {
				sess.Phase = phase
				if err := s.store.Save(r.Context(), "session", sessionID, sess, session.DefaultTTL); err == nil {
					s.bus.Emit(r.Context(), sessionID, "error", map[string]any{"message": "The call didn't connect."})
				}
			}
		}
	}
	okStatus(w)
}
