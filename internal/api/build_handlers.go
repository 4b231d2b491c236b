package api

import "net/http"

// handleBuildPreview serves the generated site for a Build session. The
// Content-Security-Policy strips script/object execution so a generated
// page can never run arbitrary script in the context of this origin.
func (s *Server) handleBuildPreview(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/build/preview/")

	var html string
	ok, err := s.store.Load(r.Context(), "build", "preview:"+id, &html)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "preview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Security-Policy", "script-src 'none'; object-src 'none'")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
