// Package router implements the Intent Router: a single-shot LLM
// classification of a user message into an agent tag, params, and a
// confidence score, with a deterministic fallback on any failure.
package router

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/DeepNandre/friendlyy/internal/llm"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
)

// SystemPrompt is the fixed classification prompt. call_friend is checked
// first so "call my friend Alex about sushi" never misclassifies as blitz
// just because the message also mentions a venue.
const SystemPrompt = `You are a router for Friendly, an AI assistant that makes phone calls on behalf of users.

Classify the user's intent and output ONLY valid JSON:
{"agent": "blitz|build|bounce|queue|bid|inbox|call_friend|chat", "params": {...}, "confidence": 0.0-1.0}

PRIORITY ORDER (check in this order):
1. call_friend: HIGHEST PRIORITY. If user says "call my friend/mate/mom/dad/brother/sister [NAME]" or "ring [NAME]" or "call [NAME] and ask...", this is ALWAYS call_friend, even if the message mentions restaurants, activities, or places. The user wants YOU to call their FRIEND, not search for businesses.
2. blitz: Find services, get quotes, check availability from BUSINESSES (not personal contacts)
3. Other agents as described below

Agents:
- call_friend: Call a specific PERSON (friend, family member, contact by name) with a custom message or question.
- blitz: Find services, get quotes, check availability from BUSINESSES. NOT for calling personal contacts.
- build: Build, create, or make websites, landing pages, portfolios, apps, web pages
- bounce: Cancel subscriptions (Netflix, gym, etc.)
- queue: Wait on hold for someone (HMRC, bank, etc.)
- bid: Negotiate bills lower (Sky, broadband, etc.)
- inbox: Check email, read inbox, email summaries, mail updates
- chat: Greetings, help questions, or general conversation

Output ONLY the JSON, no explanation or markdown.`

const (
	temperature = 0.1
	maxTokens   = 200
)

// fallback is the deterministic result returned whenever classification
// cannot be trusted: no key configured, an HTTP error, or a parse failure.
func fallback() models.RouterResult {
	return models.RouterResult{Agent: models.AgentChat, Params: models.RouterParams{}, Confidence: 0.5}
}

// Classify routes a user message to an agent. userMessage is expected to
// already be trimmed and length-bounded by the caller (≤ 1000 chars).
func Classify(ctx context.Context, client *llm.Client, userMessage string) models.RouterResult {
	if client == nil {
		return fallback()
	}

	resp, err := client.Chat(ctx, []llm.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: userMessage},
	}, nil, temperature, maxTokens)
	if err != nil {
		logger.Error("router classification failed", "error", err)
		return fallback()
	}

	result := parseResponse(resp.Content)
	logger.Info("router classified message", "agent", result.Agent, "confidence", result.Confidence)
	return result
}

// parseResponse parses the router's JSON reply, stripping markdown code
// fences first. Any parse or validation problem degrades to fallback().
func parseResponse(content string) models.RouterResult {
	content = strings.TrimSpace(content)

	if strings.Contains(content, "```") {
		parts := strings.Split(content, "```")
		if len(parts) >= 2 {
			content = strings.TrimSpace(parts[1])
			content = strings.TrimPrefix(content, "json")
			content = strings.TrimSpace(content)
		}
	}

	var raw struct {
		Agent      string               `json:"agent"`
		Params     models.RouterParams  `json:"params"`
		Confidence *float64             `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		logger.Warn("failed to parse router response", "error", err)
		return fallback()
	}

	agent, ok := models.ValidAgentType(strings.ToLower(raw.Agent))
	if !ok {
		agent = models.AgentChat
	}

	confidence := 1.0
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}

	return models.RouterResult{Agent: agent, Params: raw.Params, Confidence: confidence}
}
