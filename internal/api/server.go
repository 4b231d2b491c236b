// Package api implements the HTTP surface described in this service's
// external interface contract: the chat entrypoint, SSE streams, session
// snapshots, carrier-facing webhooks and call-control markup, the Media
// Bridge's WebSocket upgrade endpoints, the build preview and audio
// endpoints, and the read-only tracing dashboard.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DeepNandre/friendlyy/internal/agent/blitz"
	"github.com/DeepNandre/friendlyy/internal/agent/build"
	"github.com/DeepNandre/friendlyy/internal/agent/callfriend"
	"github.com/DeepNandre/friendlyy/internal/agent/queue"
	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/llm"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/media"
	"github.com/DeepNandre/friendlyy/internal/places"
	"github.com/DeepNandre/friendlyy/internal/session"
	"github.com/DeepNandre/friendlyy/internal/telephony"
	"github.com/DeepNandre/friendlyy/internal/telephony/webhooks"
	"github.com/DeepNandre/friendlyy/internal/tracing"
	"github.com/DeepNandre/friendlyy/internal/ttscache"
)

// Server wires every component into a single *http.ServeMux.
type Server struct {
	addr       string
	httpServer *http.Server
	startTime  time.Time

	store      *session.Store
	bus        *eventbus.Bus
	classifier *llm.Client
	resolver   *places.Resolver
	tts        *ttscache.Cache
	driver     *telephony.Driver
	reconciler *webhooks.Reconciler
	bridges    *media.Manager
	traces     *tracing.Store

	blitzAgent      *blitz.Agent
	queueAgent      *queue.Agent
	callFriendAgent *callfriend.Agent
	buildAgent      *build.Agent

	publicURL  string
	aiVoiceURL string
}

// Deps bundles every component NewServer wires into the mux.
type Deps struct {
	Store           *session.Store
	Bus             *eventbus.Bus
	Classifier      *llm.Client
	Resolver        *places.Resolver
	TTS             *ttscache.Cache
	Driver          *telephony.Driver
	Reconciler      *webhooks.Reconciler
	Bridges         *media.Manager
	Traces          *tracing.Store
	BlitzAgent      *blitz.Agent
	QueueAgent      *queue.Agent
	CallFriendAgent *callfriend.Agent
	BuildAgent      *build.Agent
	PublicURL       string
	AIVoiceURL      string

	// CORSOrigins restricts Access-Control-Allow-Origin to this allowlist;
	// empty means allow any origin (the demo default).
	CORSOrigins []string
	// RateLimitPerMinute caps requests per client IP per minute; zero or
	// negative disables rate limiting.
	RateLimitPerMinute int
}

// NewServer builds the Server and registers every route.
func NewServer(addr string, d Deps) *Server {
	s := &Server{
		addr:            addr,
		startTime:       time.Now(),
		store:           d.Store,
		bus:             d.Bus,
		classifier:      d.Classifier,
		resolver:        d.Resolver,
		tts:             d.TTS,
		driver:          d.Driver,
		reconciler:      d.Reconciler,
		bridges:         d.Bridges,
		traces:          d.Traces,
		blitzAgent:      d.BlitzAgent,
		queueAgent:      d.QueueAgent,
		callFriendAgent: d.CallFriendAgent,
		buildAgent:      d.BuildAgent,
		publicURL:       d.PublicURL,
		aiVoiceURL:      d.AIVoiceURL,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)

	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/blitz/stream/", s.handleBlitzStream)
	mux.HandleFunc("/api/build/stream/", s.handleBuildStream)
	mux.HandleFunc("/api/call_friend/stream/", s.handleCallFriendStream)
	mux.HandleFunc("/api/inbox/stream/", s.handleInboxStream)

	mux.HandleFunc("/api/blitz/session/", s.handleBlitzSession)
	mux.HandleFunc("/api/queue/session/", s.handleQueueSession)
	mux.HandleFunc("/api/queue/cancel/", s.handleQueueCancel)

	mux.HandleFunc("/api/blitz/twiml/", s.handleBlitzTwiml)
	mux.HandleFunc("/api/blitz/webhook", s.handleBlitzWebhook)
	mux.HandleFunc("/api/blitz/amd", s.handleBlitzAMD)
	mux.HandleFunc("/api/blitz/recording-complete", s.handleBlitzRecordingComplete)

	mux.HandleFunc("/api/queue/twiml/", s.handleQueueTwiml)
	mux.HandleFunc("/api/queue/ivr/", s.handleQueueIVR)
	mux.HandleFunc("/api/queue/ivr-handler/", s.handleQueueIVR)
	mux.HandleFunc("/api/queue/hold/", s.handleQueueHoldLoop)
	mux.HandleFunc("/api/queue/hold-loop/", s.handleQueueHoldLoop)
	mux.HandleFunc("/api/queue/human-check/", s.handleQueueHumanCheck)
	mux.HandleFunc("/api/queue/webhook/", s.handleQueueStatusCallback)
	mux.HandleFunc("/api/queue/status-callback", s.handleQueueStatusCallback)

	mux.HandleFunc("/api/call_friend/twiml/", s.handleCallFriendTwiml)
	mux.HandleFunc("/api/call_friend/webhook", s.handleCallFriendWebhook)

	mux.HandleFunc("/api/build/preview/", s.handleBuildPreview)
	mux.HandleFunc("/api/audio/", s.handleAudio)

	mux.HandleFunc("/api/blitz/media-stream/", s.handleMediaStream)
	mux.HandleFunc("/api/call_friend/media-stream/", s.handleMediaStream)

	mux.HandleFunc("/traces", s.handleTracesDashboard)
	mux.HandleFunc("/traces/performance", s.handleTracesPerformance)
	mux.HandleFunc("/traces/improvement", s.handleTracesImprovement)
	mux.HandleFunc("/traces/recent", s.handleTracesRecent)
	mux.HandleFunc("/traces/blitz", s.handleTracesBlitz)

	var limiter *rateLimiter
	if d.RateLimitPerMinute > 0 {
		limiter = newRateLimiter(d.RateLimitPerMinute)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: withRateLimit(withCORS(mux, d.CORSOrigins), limiter),
	}
	return s
}

// Start begins listening for HTTP requests in the background.
func (s *Server) Start() error {
	logger.Info("starting HTTP API server", "addr", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.bridges != nil {
		s.bridges.Shutdown()
	}
	return s.httpServer.Shutdown(ctx)
}

// withCORS allows any origin when origins is empty (the demo default);
// otherwise it reflects the request's Origin back only when it's allowlisted.
func withCORS(next http.Handler, origins []string) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case len(allowed) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[r.Header.Get("Origin")]:
			w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": int64(time.Since(s.startTime).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write JSON response failed", "error", err)
	}
}

func writeXML(w http.ResponseWriter, markup string) {
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(markup))
}

func okStatus(w http.ResponseWriter) {
	writeJSON(w, map[string]string{"status": "ok"})
}
