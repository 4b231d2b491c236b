package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DeepNandre/friendlyy/internal/llm"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/places"
	"github.com/DeepNandre/friendlyy/internal/router"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message             string            `json:"message"`
	SessionID           string            `json:"session_id,omitempty"`
	Location            *ChatLocation     `json:"location,omitempty"`
	ConversationHistory []ChatHistoryTurn `json:"conversation_history,omitempty"`
	Model               string            `json:"model,omitempty"`
	EntityID            string            `json:"entity_id,omitempty"`
}

// ChatLocation is an optional coordinate hint attached to a chat request.
type ChatLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ChatHistoryTurn is one prior turn the client replays for context.
type ChatHistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the immediate reply to POST /api/chat; the actual agent
// work, if any, continues in the background and is observed via
// StreamURL.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Agent     string `json:"agent"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	StreamURL string `json:"stream_url,omitempty"`
}

var phonePattern = regexp.MustCompile(`[+]?[\d\s\-()]{10,}`)
var phoneCleanup = regexp.MustCompile(`[^\d+]`)

func extractPhone(candidates ...string) string {
	for _, c := range candidates {
		if m := phonePattern.FindString(c); m != "" {
			return phoneCleanup.ReplaceAllString(m, "")
		}
	}
	return ""
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		http.Error(w, "message must not be empty", http.StatusBadRequest)
		return
	}
	if len(req.Message) > 1000 {
		req.Message = req.Message[:1000]
	}

	result := router.Classify(r.Context(), s.classifier, req.Message)
	logger.Info("router classified chat message", "agent", result.Agent, "confidence", result.Confidence)

	var resp ChatResponse
	switch result.Agent {
	case models.AgentBlitz:
		resp = s.dispatchBlitz(req, result.Params)
	case models.AgentBuild:
		resp = s.dispatchBuild(req, result.Params)
	case models.AgentQueue:
		resp = s.dispatchQueue(req, result.Params)
	case models.AgentCallFriend:
		resp = s.dispatchCallFriend(req, result.Params)
	case models.AgentBounce:
		resp = notImplemented(models.AgentBounce)
	case models.AgentBid:
		resp = notImplemented(models.AgentBid)
	case models.AgentInbox:
		resp = s.dispatchInbox(req, result.Params)
	default:
		resp = s.dispatchChat(r.Context(), req)
	}

	writeJSON(w, resp)
}

func (s *Server) dispatchBlitz(req ChatRequest, params models.RouterParams) ChatResponse {
	sessionID := uuid.New().String()
	var coords *places.LatLng
	if req.Location != nil {
		coords = &places.LatLng{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}

	go s.blitzAgent.Run(context.Background(), sessionID, req.Message, params, coords)

	service := params.Service
	if service == "" {
		service = "services"
	}
	return ChatResponse{
		SessionID: sessionID,
		Agent:     string(models.AgentBlitz),
		Status:    "searching",
		Message:   fmt.Sprintf("On it! Let me find some %s for you...", service),
		StreamURL: fmt.Sprintf("/api/blitz/stream/%s", sessionID),
	}
}

func (s *Server) dispatchBuild(req ChatRequest, params models.RouterParams) ChatResponse {
	sessionID := uuid.New().String()
	siteType := params.Service
	if siteType == "" {
		siteType = "website"
	}

	go s.buildAgent.Run(context.Background(), sessionID, req.Message, params)

	return ChatResponse{
		SessionID: sessionID,
		Agent:     string(models.AgentBuild),
		Status:    "building",
		Message:   fmt.Sprintf("On it! Let me build a %s for you...", siteType),
		StreamURL: fmt.Sprintf("/api/build/stream/%s", sessionID),
	}
}

func (s *Server) dispatchQueue(req ChatRequest, params models.RouterParams) ChatResponse {
	sessionID := uuid.New().String()
	businessName := params.Service
	if businessName == "" {
		businessName = "Unknown"
	}
	reason := params.Action
	if reason == "" {
		reason = "general enquiry"
	}

	phone := extractPhone(params.Notes, req.Message)
	if phone == "" {
		return ChatResponse{
			SessionID: sessionID,
			Agent:     string(models.AgentQueue),
			Status:    "pending",
			Message:   fmt.Sprintf("I can wait on hold at %s for you! What's their phone number?", businessName),
		}
	}

	go s.queueAgent.Start(context.Background(), sessionID, phone, businessName, reason, 0)

	return ChatResponse{
		SessionID: sessionID,
		Agent:     string(models.AgentQueue),
		Status:    "calling",
		Message:   fmt.Sprintf("On it! I'm calling %s and will wait on hold for you. I'll let you know when a human picks up.", businessName),
		StreamURL: fmt.Sprintf("/api/blitz/stream/%s", sessionID),
	}
}

func (s *Server) dispatchCallFriend(req ChatRequest, params models.RouterParams) ChatResponse {
	sessionID := uuid.New().String()
	friendName := params.Service
	if friendName == "" {
		friendName = "your friend"
	}
	question := params.Action
	if question == "" {
		question = req.Message
	}

	phone := extractPhone(params.Notes, req.Message)
	if phone == "" {
		return ChatResponse{
			SessionID: sessionID,
			Agent:     string(models.AgentCallFriend),
			Status:    "awaiting_phone",
			Message:   fmt.Sprintf("I'll call %s for you! What's their phone number?", friendName),
		}
	}

	go s.callFriendAgent.Run(context.Background(), sessionID, friendName, phone, question)

	return ChatResponse{
		SessionID: sessionID,
		Agent:     string(models.AgentCallFriend),
		Status:    "calling",
		Message:   fmt.Sprintf("Calling %s now! I'll ask: %q", friendName, question),
		StreamURL: fmt.Sprintf("/api/call_friend/stream/%s", sessionID),
	}
}

// dispatchInbox acknowledges an inbox request. The Gmail/mailbox
// connector is an external collaborator reached only via OAuth in a real
// deployment; without a configured connector this always asks the user to
// authenticate, matching the original's auth-required terminal event.
func (s *Server) dispatchInbox(req ChatRequest, params models.RouterParams) ChatResponse {
	sessionID := uuid.New().String()
	return ChatResponse{
		SessionID: sessionID,
		Agent:     string(models.AgentInbox),
		Status:    "auth_required",
		Message:   "I'd need access to your inbox to do that. Mailbox integration isn't configured in this deployment.",
		StreamURL: fmt.Sprintf("/api/inbox/stream/%s", sessionID),
	}
}

func notImplemented(agent models.AgentType) ChatResponse {
	return ChatResponse{
		SessionID: uuid.New().String(),
		Agent:     string(agent),
		Status:    "not_implemented",
		Message:   fmt.Sprintf("%s isn't available yet, sorry!", agent),
	}
}

const chatSystemPrompt = `You are Friendly, a helpful AI assistant that makes phone calls on behalf of users. Respond conversationally and briefly to greetings and general questions. If the user describes a task (finding a business, building a website, calling someone, waiting on hold), gently prompt them to be more specific so you can help.`

func (s *Server) dispatchChat(ctx context.Context, req ChatRequest) ChatResponse {
	sessionID := uuid.New().String()
	message := fallbackChatReply

	if s.classifier != nil {
		messages := []llm.Message{{Role: "system", Content: chatSystemPrompt}}
		for _, turn := range req.ConversationHistory {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
		messages = append(messages, llm.Message{Role: "user", Content: req.Message})

		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		if resp, err := s.classifier.Chat(ctx, messages, nil, 0.7, 300); err == nil && resp.Content != "" {
			message = resp.Content
		} else if err != nil {
			logger.Warn("chat fallback generation failed", "error", err)
		}
	}

	return ChatResponse{
		SessionID: sessionID,
		Agent:     string(models.AgentChat),
		Status:    "complete",
		Message:   message,
	}
}

const fallbackChatReply = "Hi! I can find businesses and call them for quotes, build you a quick website, wait on hold for you, or call a friend with a question. What would you like help with?"
