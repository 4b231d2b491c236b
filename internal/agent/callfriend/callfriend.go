// Package callfriend implements the CallFriend agent: place a live-bridge
// call to a named contact, wait for the Media Bridge to capture a
// transcript, and summarize the outcome for the user.
package callfriend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/llm"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/session"
	"github.com/DeepNandre/friendlyy/internal/telephony"
)

const (
	waitPoll    = 2 * time.Second
	waitTimeout = 180 * time.Second
)

// Agent runs the CallFriend live-bridge workflow.
type Agent struct {
	store     *session.Store
	bus       *eventbus.Bus
	driver    *telephony.Driver
	chat      *llm.Client
	publicURL string
}

// New creates a CallFriend Agent.
func New(store *session.Store, bus *eventbus.Bus, driver *telephony.Driver, chat *llm.Client, publicURL string) *Agent {
	return &Agent{store: store, bus: bus, driver: driver, chat: chat, publicURL: publicURL}
}

// Run executes the full CallFriend workflow synchronously.
func (a *Agent) Run(ctx context.Context, sessionID, friendName, phone, question string) {
	sess := models.CallFriendSession{
		ID:         sessionID,
		FriendName: friendName,
		Phone:      phone,
		Question:   question,
		Phase:      models.CallFriendInitiating,
		CreatedAt:  time.Now(),
	}
	a.saveSession(ctx, &sess)
	a.bus.Emit(ctx, sessionID, "status", map[string]any{
		"phase":       "initiating",
		"message":     fmt.Sprintf("Calling %s...", friendName),
		"friend_name": friendName,
	})

	twimlURL := fmt.Sprintf("%s/api/call_friend/twiml/%s", a.publicURL, sessionID)
	statusURL := fmt.Sprintf("%s/api/call_friend/webhook?session_id=%s", a.publicURL, sessionID)

	carrierSID, err := a.driver.Place(ctx, phone, twimlURL, statusURL, telephony.PlaceOptions{
		Timeout: 45 * time.Second,
		Record:  true,
		AMD:     true,
	})
	if err != nil {
		sess.Phase = models.CallFriendFailed
		a.saveSession(ctx, &sess)
		a.bus.Emit(ctx, sessionID, "error", map[string]any{"message": "Failed to initiate call. Please check the phone number."})
		return
	}

	sess.CarrierSID = carrierSID
	sess.Phase = models.CallFriendRinging
	a.saveSession(ctx, &sess)
	a.bus.Emit(ctx, sessionID, "call_started", map[string]any{
		"phase":       "ringing",
		"message":     fmt.Sprintf("Ringing %s...", friendName),
		"friend_name": friendName,
	})

	a.waitForCompletion(ctx, &sess)

	if len(sess.Transcript) > 0 {
		sess.Summary = a.generateSummary(ctx, &sess)
	}

	a.saveSession(ctx, &sess)
	a.bus.Emit(ctx, sessionID, "session_complete", map[string]any{
		"phase":       sess.Phase,
		"summary":     sess.Summary,
		"response":    sess.Response,
		"transcript":  sess.Transcript,
		"friend_name": friendName,
	})
}

func (a *Agent) waitForCompletion(ctx context.Context, sess *models.CallFriendSession) {
	deadline := time.Now().Add(waitTimeout)
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()

	for {
		var current models.CallFriendSession
		if ok, err := a.store.Load(ctx, "session", sess.ID, &current); err == nil && ok {
			sess.Phase = current.Phase
			sess.Transcript = current.Transcript
			sess.Response = current.Response
		}

		if isTerminal(sess.Phase) {
			return
		}
		if time.Now().After(deadline) {
			logger.Warn("callfriend: session timed out", "session_id", sess.ID)
			sess.Phase = models.CallFriendFailed
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func isTerminal(phase models.CallFriendPhase) bool {
	switch phase {
	case models.CallFriendComplete, models.CallFriendFailed, models.CallFriendNoAnswer:
		return true
	default:
		return false
	}
}

func (a *Agent) generateSummary(ctx context.Context, sess *models.CallFriendSession) string {
	var b strings.Builder
	for _, line := range sess.Transcript {
		fmt.Fprintf(&b, "%s: %s\n", line.Role, line.Text)
	}

	prompt := fmt.Sprintf(`I just called %s on behalf of a user to ask: "%s"

Here's the conversation transcript:
%s

Please write a brief, friendly summary (2-3 sentences) telling the user what %s said.
Be warm and conversational. Start with something like "%s said..." or "Great news!" or "I spoke with %s..."`,
		sess.FriendName, sess.Question, b.String(), sess.FriendName, sess.FriendName, sess.FriendName)

	if a.chat == nil {
		return fallbackSummary(sess)
	}

	resp, err := a.chat.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, 0.7, 300)
	if err != nil {
		logger.Warn("callfriend: summary generation failed", "error", err)
		return fallbackSummary(sess)
	}
	return resp.Content
}

func fallbackSummary(sess *models.CallFriendSession) string {
	if sess.Response != "" {
		return fmt.Sprintf("I spoke with %s. They said: %s", sess.FriendName, sess.Response)
	}
	return fmt.Sprintf("I called %s but couldn't get a clear response. You might want to try calling them directly.", sess.FriendName)
}

// ConversationPrompt builds the system prompt and opening line for the
// Media Bridge's conversational AI session.
func ConversationPrompt(sess *models.CallFriendSession) (systemPrompt, firstMessage string) {
	systemPrompt = fmt.Sprintf(`You are a friendly AI assistant making a phone call on behalf of someone.
You are calling %s. Your goal is to deliver a message and get a response.

The person who asked you to call wants to know: %s

Guidelines:
- Introduce yourself naturally: "Hi! I'm calling on behalf of your friend"
- Explain you're an AI assistant making this call for them
- Ask the question clearly and conversationally
- Listen to their response and acknowledge it
- Thank them for their time
- Keep the call brief and friendly (under 2 minutes)
- If they seem confused, briefly explain that their friend asked you to call
- If it's a voicemail, leave a brief message asking them to call their friend back

Important: Be warm, natural, and conversational. You're helping connect friends!`, sess.FriendName, sess.Question)

	firstMessage = fmt.Sprintf(`Hi there! Is this %s?
I'm calling on behalf of your friend. They asked me to reach out to you with a quick question - %s`, sess.FriendName, sess.Question)

	return systemPrompt, firstMessage
}

func (a *Agent) saveSession(ctx context.Context, sess *models.CallFriendSession) {
	if err := a.store.Save(ctx, "session", sess.ID, *sess, session.DefaultTTL); err != nil {
		logger.Error("callfriend: save session failed", "session_id", sess.ID, "error", err)
	}
}
