package callfriend

import (
	"strings"
	"testing"

	"github.com/DeepNandre/friendlyy/internal/models"
)

func TestIsTerminal(t *testing.T) {
	cases := map[models.CallFriendPhase]bool{
		models.CallFriendInitiating: false,
		models.CallFriendRinging:    false,
		models.CallFriendConnected:  false,
		models.CallFriendComplete:   true,
		models.CallFriendFailed:     true,
		models.CallFriendNoAnswer:   true,
	}
	for phase, want := range cases {
		if got := isTerminal(phase); got != want {
			t.Errorf("isTerminal(%q) = %v, want %v", phase, got, want)
		}
	}
}

func TestFallbackSummaryWithResponse(t *testing.T) {
	sess := &models.CallFriendSession{FriendName: "Dave", Response: "Yeah I'm free Saturday"}
	got := fallbackSummary(sess)
	if !strings.Contains(got, "Dave") || !strings.Contains(got, "Yeah I'm free Saturday") {
		t.Errorf("fallbackSummary() = %q, missing friend name or response", got)
	}
}

func TestFallbackSummaryNoResponse(t *testing.T) {
	sess := &models.CallFriendSession{FriendName: "Dave"}
	got := fallbackSummary(sess)
	if !strings.Contains(got, "Dave") || !strings.Contains(got, "couldn't get a clear response") {
		t.Errorf("fallbackSummary() = %q, want a no-response fallback mentioning Dave", got)
	}
}

func TestConversationPromptMentionsFriendAndQuestion(t *testing.T) {
	sess := &models.CallFriendSession{FriendName: "Priya", Question: "are you free for dinner Friday?"}
	systemPrompt, firstMessage := ConversationPrompt(sess)

	if !strings.Contains(systemPrompt, "Priya") || !strings.Contains(systemPrompt, sess.Question) {
		t.Errorf("ConversationPrompt() system prompt missing friend name or question: %q", systemPrompt)
	}
	if !strings.Contains(firstMessage, "Priya") || !strings.Contains(firstMessage, sess.Question) {
		t.Errorf("ConversationPrompt() first message missing friend name or question: %q", firstMessage)
	}
}
