package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DeepNandre/friendlyy/internal/agent/queue"
	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/session"
)

func newTestServer() *Server {
	store := session.New("")
	bus := eventbus.New(nil)
	return NewServer(":0", Deps{
		Store:      store,
		Bus:        bus,
		QueueAgent: queue.New(store, bus, nil, nil, "https://friendly.example.com"),
		PublicURL:  "https://friendly.example.com",
	})
}

func TestPathSuffixTrimsPrefixAndTrailingSlash(t *testing.T) {
	cases := map[string]string{
		"/api/blitz/stream/abc":  "abc",
		"/api/blitz/stream/abc/": "abc",
		"/api/blitz/stream/":     "",
	}
	for path, want := range cases {
		if got := pathSuffix(path, "/api/blitz/stream/"); got != want {
			t.Errorf("pathSuffix(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestTrimAnyPrefixTriesEachInOrder(t *testing.T) {
	got := trimAnyPrefix("/api/queue/ivr-handler/sess-1", "/api/queue/ivr-handler/", "/api/queue/ivr/")
	if got != "sess-1" {
		t.Errorf("trimAnyPrefix() = %q, want %q", got, "sess-1")
	}
	got = trimAnyPrefix("/api/queue/ivr/sess-2", "/api/queue/ivr-handler/", "/api/queue/ivr/")
	if got != "sess-2" {
		t.Errorf("trimAnyPrefix() = %q, want %q", got, "sess-2")
	}
}

func TestParseBlitzTwimlPath(t *testing.T) {
	sessionID, callID, ok := parseBlitzTwimlPath("/api/blitz/twiml/sess-1/call-1")
	if !ok || sessionID != "sess-1" || callID != "call-1" {
		t.Errorf("parseBlitzTwimlPath() = %q, %q, %v, want sess-1, call-1, true", sessionID, callID, ok)
	}

	if _, _, ok := parseBlitzTwimlPath("/api/blitz/twiml/sess-1"); ok {
		t.Error("parseBlitzTwimlPath() with a missing call segment should report not ok")
	}
}

func TestMediaStreamID(t *testing.T) {
	if got := mediaStreamID("/api/blitz/media-stream/call-1"); got != "call-1" {
		t.Errorf("mediaStreamID() = %q, want %q", got, "call-1")
	}
	if got := mediaStreamID("/api/call_friend/media-stream/call-2/"); got != "call-2" {
		t.Errorf("mediaStreamID() = %q, want %q", got, "call-2")
	}
}

func TestExtractPhoneFindsFirstMatch(t *testing.T) {
	got := extractPhone("", "call my friend", "+44 20 7946 0958")
	if got != "+442079460958" {
		t.Errorf("extractPhone() = %q, want %q", got, "+442079460958")
	}
}

func TestExtractPhoneNoMatch(t *testing.T) {
	if got := extractPhone("no digits here"); got != "" {
		t.Errorf("extractPhone() = %q, want empty", got)
	}
}

func TestHandleChatRejectsEmptyMessage(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "   "}`))
	w := httptest.NewRecorder()
	s.handleChat(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("handleChat with blank message = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleChatRejectsNonPost(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	w := httptest.NewRecorder()
	s.handleChat(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("handleChat(GET) = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleChatFallsBackToChatReplyWithoutClassifier(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "hello there"}`))
	w := httptest.NewRecorder()
	s.handleChat(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("handleChat = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), fallbackChatReply) {
		t.Errorf("handleChat body = %q, want it to contain the fallback chat reply", w.Body.String())
	}
}

func TestHandleBlitzSessionNotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/blitz/session/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.handleBlitzSession(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("handleBlitzSession(unknown id) = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleQueueCancelNotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/queue/cancel/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.handleQueueCancel(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("handleQueueCancel(unknown id) = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleQueueCancelRejectsNonPost(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/queue/cancel/sess-1", nil)
	w := httptest.NewRecorder()
	s.handleQueueCancel(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("handleQueueCancel(GET) = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleAudioNotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/audio/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.handleAudio(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("handleAudio(unknown hash) = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleBuildPreviewNotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/build/preview/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.handleBuildPreview(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("handleBuildPreview(unknown id) = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleHealthReportsOK(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("handleHealth = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("handleHealth body = %q, want it to report status ok", w.Body.String())
	}
}

func TestHandleBlitzTwimlNotFoundOnMalformedPath(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/blitz/twiml/sess-only", nil)
	w := httptest.NewRecorder()
	s.handleBlitzTwiml(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("handleBlitzTwiml(malformed path) = %d, want %d", w.Code, http.StatusNotFound)
	}
}
