package router

import (
	"context"
	"testing"

	"github.com/DeepNandre/friendlyy/internal/models"
)

func TestClassifyWithNilClientFallsBack(t *testing.T) {
	got := Classify(context.Background(), nil, "call my friend Dave")
	if got.Agent != models.AgentChat {
		t.Errorf("Classify(nil client) agent = %q, want %q", got.Agent, models.AgentChat)
	}
	if got.Confidence != 0.5 {
		t.Errorf("Classify(nil client) confidence = %v, want 0.5", got.Confidence)
	}
}

func TestParseResponsePlainJSON(t *testing.T) {
	got := parseResponse(`{"agent": "blitz", "params": {"service": "plumber"}, "confidence": 0.9}`)
	if got.Agent != models.AgentBlitz {
		t.Errorf("agent = %q, want %q", got.Agent, models.AgentBlitz)
	}
	if got.Params.Service != "plumber" {
		t.Errorf("params.service = %q, want %q", got.Params.Service, "plumber")
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}
}

func TestParseResponseStripsMarkdownFences(t *testing.T) {
	got := parseResponse("```json\n{\"agent\": \"call_friend\", \"params\": {}, \"confidence\": 0.8}\n```")
	if got.Agent != models.AgentCallFriend {
		t.Errorf("agent = %q, want %q", got.Agent, models.AgentCallFriend)
	}
}

func TestParseResponseUnknownAgentFallsBackToChat(t *testing.T) {
	got := parseResponse(`{"agent": "not_a_real_agent", "params": {}, "confidence": 0.7}`)
	if got.Agent != models.AgentChat {
		t.Errorf("agent = %q, want %q (fallback for unknown agent tag)", got.Agent, models.AgentChat)
	}
}

func TestParseResponseInvalidJSONFallsBack(t *testing.T) {
	got := parseResponse("not json at all")
	if got.Agent != models.AgentChat || got.Confidence != 0.5 {
		t.Errorf("parseResponse(invalid json) = %+v, want the deterministic fallback", got)
	}
}

func TestParseResponseClampsConfidence(t *testing.T) {
	over := parseResponse(`{"agent": "chat", "params": {}, "confidence": 1.5}`)
	if over.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", over.Confidence)
	}

	under := parseResponse(`{"agent": "chat", "params": {}, "confidence": -0.3}`)
	if under.Confidence != 0.0 {
		t.Errorf("confidence = %v, want clamped to 0.0", under.Confidence)
	}
}

func TestParseResponseDefaultsConfidenceWhenAbsent(t *testing.T) {
	got := parseResponse(`{"agent": "chat", "params": {}}`)
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want default 1.0 when absent", got.Confidence)
	}
}
