package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/DeepNandre/friendlyy/internal/agent/callfriend"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/media"
	"github.com/DeepNandre/friendlyy/internal/models"
)

var mediaUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// elevenLabsDefaultVoiceID is the ElevenLabs voice (Rachel) requested in the
// conversation_initiation_client_data message.
const elevenLabsDefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// conversationInit is the one-time handshake message sent to the AI voice
// leg right after connecting, seeding its system prompt, opening line, and
// voice.
type conversationInit struct {
	Type                       string `json:"type"`
	ConversationConfigOverride struct {
		Agent struct {
			Prompt struct {
				Prompt string `json:"prompt"`
			} `json:"prompt"`
			FirstMessage string `json:"first_message"`
		} `json:"agent"`
		TTS struct {
			VoiceID string `json:"voice_id"`
		} `json:"tts"`
	} `json:"conversation_config_override"`
}

// handleMediaStream upgrades the carrier's bidirectional media WebSocket
// for a live call and bridges it to the AI voice leg, dialed out at
// aiVoiceWebSocketURL. Registered for both /api/blitz/media-stream/ (unused
// by the current Blitz call-script, kept for symmetry with the external
// interface) and /api/call_friend/media-stream/, which is the one live
// call leg that actually streams audio both ways.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	kind := mediaStreamKind(r.URL.Path)
	id := mediaStreamID(r.URL.Path)
	if id == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	carrierConn, err := mediaUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("media stream: carrier upgrade failed", "error", err)
		return
	}

	if s.aiVoiceURL == "" {
		logger.Info("media stream: no AI voice endpoint configured, closing carrier leg", "id", id)
		carrierConn.Close()
		return
	}

	aiConn, _, err := websocket.DefaultDialer.Dial(s.aiVoiceURL, nil)
	if err != nil {
		logger.Warn("media stream: AI voice dial failed", "id", id, "error", err)
		carrierConn.Close()
		return
	}

	if kind == models.AgentCallFriend {
		var sess models.CallFriendSession
		ok, err := s.store.Load(r.Context(), "session", id, &sess)
		if err != nil || !ok {
			logger.Warn("media stream: call_friend session not found", "id", id, "error", err)
			carrierConn.Close()
			aiConn.Close()
			return
		}

		systemPrompt, firstMessage := callfriend.ConversationPrompt(&sess)
		var init conversationInit
		init.Type = "conversation_initiation_client_data"
		init.ConversationConfigOverride.Agent.Prompt.Prompt = systemPrompt
		init.ConversationConfigOverride.Agent.FirstMessage = firstMessage
		init.ConversationConfigOverride.TTS.VoiceID = elevenLabsDefaultVoiceID

		encoded, err := json.Marshal(init)
		if err == nil {
			err = aiConn.WriteMessage(websocket.TextMessage, encoded)
		}
		if err != nil {
			logger.Warn("media stream: AI voice init failed", "id", id, "error", err)
			carrierConn.Close()
			aiConn.Close()
			return
		}
	}

	s.bridges.Create(id,
		&media.Endpoint{SessionID: id, Kind: kind, Conn: carrierConn},
		&media.Endpoint{SessionID: id, Kind: kind, Conn: aiConn},
	)
}

// mediaStreamKind reports which agent owns the session at the other end of
// a media-stream path.
func mediaStreamKind(path string) models.AgentType {
	if strings.HasPrefix(path, "/api/call_friend/") {
		return models.AgentCallFriend
	}
	return models.AgentBlitz
}

// mediaStreamID pulls the call (or session) identifier out of either
// /api/blitz/media-stream/{session}/{call} or
// /api/call_friend/media-stream/{session}, using the last path segment as
// the Media Bridge registry key either way.
func mediaStreamID(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
