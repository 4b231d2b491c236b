package api

import (
	"net/http"
	"strconv"
)

// handleTracesDashboard returns the raw recent-traces feed, the same data
// a richer dashboard UI would render — this service exposes it as JSON
// rather than serving a templated page.
func (s *Server) handleTracesDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"performance": s.traces.GetPerformanceSummary(),
		"recent":      s.traces.GetRecentTraces("", 50),
	})
}

func (s *Server) handleTracesPerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.traces.GetPerformanceSummary())
}

func (s *Server) handleTracesImprovement(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.traces.GetImprovementData())
}

func (s *Server) handleTracesRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, s.traces.GetRecentTraces("", limit))
}

func (s *Server) handleTracesBlitz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.traces.GetRecentTraces("blitz_session", 50))
}
