// Package voice wraps the external text-to-speech collaborator
// (ElevenLabs): synthesizing call-script audio and caching it by content
// hash so identical scripts are never re-synthesized.
package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/ttscache"
)

const elevenLabsBase = "https://api.elevenlabs.io/v1"

// Synthesizer turns call-script text into audio, content-addressed through
// the TTS Cache so repeated scripts never re-hit the provider.
type Synthesizer struct {
	apiKey  string
	voiceID string
	client  *http.Client
	cache   *ttscache.Cache
}

// New creates a Synthesizer. An empty apiKey means Synthesize returns
// ok=false for any text not already cached; no carrier-side text-to-speech
// is used in its place.
func New(apiKey, voiceID string, cache *ttscache.Cache) *Synthesizer {
	return &Synthesizer{
		apiKey:  apiKey,
		voiceID: voiceID,
		client:  &http.Client{Timeout: 15 * time.Second},
		cache:   cache,
	}
}

// Enabled reports whether a real provider key is configured.
func (s *Synthesizer) Enabled() bool {
	return s.apiKey != ""
}

// Synthesize returns the content hash identifying text's cached audio
// (suitable for building a playback URL via the audio-serving handler),
// synthesizing and caching it first if not already present. ok=false means
// no audio is available; the Blitz call-control markup then omits playback
// and goes straight to recording, and the carrier does not speak the script
// text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (hash string, ok bool) {
	if _, found, err := s.cache.Get(ctx, text); err == nil && found {
		return ttscache.Hash(text), true
	}

	if !s.Enabled() {
		return "", false
	}

	audio, err := s.callProvider(ctx, text)
	if err != nil {
		logger.Warn("voice synthesis failed, falling back to carrier TTS", "error", err)
		return "", false
	}

	if err := s.cache.Put(ctx, text, audio); err != nil {
		logger.Warn("tts cache write failed", "error", err)
		return "", false
	}
	return ttscache.Hash(text), true
}

func (s *Synthesizer) callProvider(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": "eleven_turbo_v2",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", elevenLabsBase, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ScriptText composes the opening line a Blitz call speaks, matching the
// original deployment's call-script template: what's wanted, timeframe if
// given, then the question to leave as a recorded response prompt.
func ScriptText(serviceType, timeframe, question string) string {
	var b strings.Builder
	b.WriteString("Hi, I'm calling on behalf of a customer who needs a ")
	b.WriteString(serviceType)
	b.WriteString(".")
	if timeframe != "" {
		b.WriteString(" They're hoping for ")
		b.WriteString(timeframe)
		b.WriteString(".")
	}
	b.WriteString(" Could you let me know your ")
	b.WriteString(question)
	b.WriteString("? Please leave your answer after the tone.")
	return b.String()
}
