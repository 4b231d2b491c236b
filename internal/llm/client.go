// Package llm wraps an OpenAI-compatible chat completion client. The
// orchestrator talks to NVIDIA NIM or Mistral's API, both of which speak
// the OpenAI wire format, so a single client type serves either provider
// depending on which API key is configured.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoProvider is returned when neither provider's API key is configured.
var ErrNoProvider = errors.New("no LLM provider configured")

// Client is a thin wrapper around an OpenAI-compatible chat client bound to
// whichever provider is configured.
type Client struct {
	inner *openai.Client
	model string
}

// NewNvidia builds a Client pointed at NVIDIA NIM's OpenAI-compatible
// endpoint.
func NewNvidia(apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = "https://integrate.api.nvidia.com/v1"
	return &Client{inner: openai.NewClientWithConfig(cfg), model: model}
}

// NewMistral builds a Client pointed at Mistral's native API (also
// OpenAI-compatible for chat completions).
func NewMistral(apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = "https://api.mistral.ai/v1"
	return &Client{inner: openai.NewClientWithConfig(cfg), model: model}
}

// Message is a provider-neutral chat message.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a single function call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool describes a callable function offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatResponse is the unified response from a chat completion call.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Chat performs a single chat completion call. temperature and maxTokens
// are forwarded verbatim; tools is optional (nil means no tool calling).
func (c *Client) Chat(ctx context.Context, messages []Message, tools []Tool, temperature float32, maxTokens int) (*ChatResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
