package api

import (
	"net/http"
	"strings"

	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/sse"
)

func pathSuffix(path, prefix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
}

func (s *Server) handleBlitzStream(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/blitz/stream/")
	sse.Stream(w, r, s.bus, models.AgentBlitz, id, nil)
}

func (s *Server) handleBuildStream(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/build/stream/")
	sse.Stream(w, r, s.bus, models.AgentBuild, id, nil)
}

func (s *Server) handleCallFriendStream(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/call_friend/stream/")
	sse.Stream(w, r, s.bus, models.AgentCallFriend, id, nil)
}

func (s *Server) handleInboxStream(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/inbox/stream/")
	sse.Stream(w, r, s.bus, models.AgentInbox, id, nil)
}

func (s *Server) handleBlitzSession(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/blitz/session/")
	var sess models.BlitzSession
	ok, err := s.store.Load(r.Context(), "session", id, &sess)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sess)
}

func (s *Server) handleQueueSession(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/queue/session/")
	var sess models.QueueSession
	ok, err := s.store.Load(r.Context(), "queue", id, &sess)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sess)
}

func (s *Server) handleQueueCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathSuffix(r.URL.Path, "/api/queue/cancel/")
	if err := s.queueAgent.Cancel(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	okStatus(w)
}
