package api

import (
	"encoding/base64"
	"net/http"
)

// handleAudio serves previously-synthesized TTS audio by its content hash.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	hash := pathSuffix(r.URL.Path, "/api/audio/")
	if hash == "" || s.tts == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	encoded, ok, err := s.tts.GetByHash(r.Context(), hash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}

	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		http.Error(w, "corrupt cached audio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(audio)
}
