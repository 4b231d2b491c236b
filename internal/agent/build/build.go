// Package build implements the Build agent: an iterative, tool-calling
// website generator. Devstral is handed create_file/update_file/
// finish_build tools and iterates until it calls finish_build or a
// safety limit is reached; a model that can't or won't use tools falls
// back to a single plain-text generation, and a deployment with no LLM
// key at all gets a canned demo page.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/llm"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/session"
	"github.com/DeepNandre/friendlyy/internal/tracing"
)

const (
	maxIterations = 10
	buildTimeout  = 120 * time.Second
	previewTTL    = time.Hour
)

var clarificationKeywords = []string{
	"build something", "make something", "create something", "build me something",
	"something cool", "anything", "whatever", "surprise me", "idk", "i don't know",
}

var concreteKeywords = []string{"landing", "portfolio", "website", "page", "menu", "store", "blog", "app"}

// needsClarification reports whether message is too vague to build
// anything useful from: either explicitly hand-wavy ("build me something
// cool") or just too short to carry any concrete intent.
func needsClarification(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	words := strings.Fields(lower)
	if len(words) <= 3 && !containsAny(lower, concreteKeywords) {
		return true
	}
	return containsAny(lower, clarificationKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

const systemPrompt = `You are an expert web developer AI agent. Your task is to build beautiful, production-quality websites based on user descriptions.

You have access to these tools:
- create_file: Create a new file with the given content
- update_file: Update/replace the content of an existing file
- finish_build: Complete the build and show the preview

WORKFLOW:
1. Analyze the user's request carefully
2. Plan your approach (what pages/components needed)
3. Use create_file to create the HTML file with embedded CSS
4. If changes are needed, use update_file
5. When done, call finish_build with a summary

RULES:
- Create a single index.html file with all CSS inline in a <style> tag
- Use modern CSS (flexbox, grid, gradients, shadows, smooth transitions)
- Make it fully responsive and mobile-friendly
- Use a polished, professional color palette appropriate for the business type
- Include realistic placeholder content (text, sections, calls-to-action)
- Add subtle CSS animations (fade-in, hover effects)
- Use Google Fonts via CDN for beautiful typography
- Include hero section, features/services section, and footer at minimum
- Use emoji or unicode icons instead of external icon libraries
- The HTML should be complete and self-contained (no external JS dependencies)
- Do NOT use any JavaScript

Always think step-by-step before creating files.`

const simplePrompt = `You are a world-class web developer. Generate a complete, beautiful, single-page HTML website.

Rules:
- Output ONLY raw HTML. No markdown, no code blocks, no explanation.
- Include all CSS inline in a <style> tag.
- Use modern CSS (flexbox, grid, gradients, shadows).
- Make it fully responsive.
- Use Google Fonts via CDN.
- Include hero, features, and footer sections.
- Do NOT use JavaScript.

Output the complete HTML starting with <!DOCTYPE html>.`

var buildTools = []llm.Tool{
	{
		Name:        "create_file",
		Description: "Create a new file with the specified content. Use this to create the initial HTML/CSS for the website.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename":    map[string]any{"type": "string", "description": "Name of the file to create (e.g., 'index.html')"},
				"content":     map[string]any{"type": "string", "description": "The complete content of the file"},
				"description": map[string]any{"type": "string", "description": "Brief description of what this file does"},
			},
			"required": []string{"filename", "content"},
		},
	},
	{
		Name:        "update_file",
		Description: "Update an existing file with new content. Use this to make changes to previously created files.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": map[string]any{"type": "string", "description": "Name of the file to update"},
				"content":  map[string]any{"type": "string", "description": "The new complete content of the file"},
				"changes":  map[string]any{"type": "string", "description": "Brief description of what was changed"},
			},
			"required": []string{"filename", "content"},
		},
	},
	{
		Name:        "finish_build",
		Description: "Complete the build process and show the preview. Call this when the website is ready.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary":  map[string]any{"type": "string", "description": "Brief summary of what was built"},
				"features": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "List of key features in the website"},
			},
			"required": []string{"summary"},
		},
	},
}

// Agent runs the Build workflow. toolClient is the tool-calling-capable
// provider (Mistral's Devstral); simpleClient is any provider usable for
// plain-text fallback generation (Mistral or NVIDIA). Either may be nil:
// a nil toolClient skips straight to fallback, and a nil simpleClient
// falls further to a canned demo page.
type Agent struct {
	store        *session.Store
	bus          *eventbus.Bus
	traces       *tracing.Store
	toolClient   *llm.Client
	simpleClient *llm.Client
	publicURL    string
}

// New creates a Build Agent.
func New(store *session.Store, bus *eventbus.Bus, traces *tracing.Store, toolClient, simpleClient *llm.Client, publicURL string) *Agent {
	return &Agent{store: store, bus: bus, traces: traces, toolClient: toolClient, simpleClient: simpleClient, publicURL: publicURL}
}

// Run executes the full Build workflow synchronously.
func (a *Agent) Run(ctx context.Context, sessionID, userMessage string, params models.RouterParams) {
	start := time.Now()

	if needsClarification(userMessage) {
		a.bus.Emit(ctx, sessionID, "build_clarification", map[string]any{
			"message": "I'd love to build something for you! Could you tell me more about what you need? For example:\n\n" +
				"- What type of site? (landing page, portfolio, menu, etc.)\n" +
				"- What's it for? (business name, purpose)\n" +
				"- Any style preferences? (modern, minimal, colorful)",
		})
		return
	}

	siteType := params.Service
	if siteType == "" {
		siteType = "website"
	}
	description := params.Notes
	if description == "" {
		description = userMessage
	}

	buildCtx, cancel := context.WithTimeout(ctx, buildTimeout)
	defer cancel()

	a.bus.Emit(buildCtx, sessionID, "build_started", map[string]any{
		"message": fmt.Sprintf("Building your %s with AI...", siteType),
		"steps": []map[string]string{
			{"id": "analyze", "label": "Analyzing requirements", "status": "in_progress"},
			{"id": "plan", "label": "Planning structure", "status": "pending"},
			{"id": "generate", "label": "Generating code", "status": "pending"},
			{"id": "polish", "label": "Final polish", "status": "pending"},
		},
	})
	a.bus.Emit(buildCtx, sessionID, "build_progress", map[string]any{
		"step":           "plan",
		"message":        "Planning your website structure...",
		"completed_step": "analyze",
	})

	var files map[string]string
	var summary string
	var features []string
	agentic := false

	if a.toolClient != nil {
		files, summary, features, agentic = a.agenticBuild(buildCtx, sessionID, description, siteType)
	}

	if buildCtx.Err() != nil {
		a.timedOut(ctx, sessionID, start)
		return
	}

	if !agentic {
		files = map[string]string{"index.html": a.fallbackBuild(buildCtx, sessionID, description, siteType)}
	}

	if buildCtx.Err() != nil {
		a.timedOut(ctx, sessionID, start)
		return
	}

	a.complete(ctx, sessionID, description, siteType, files, summary, features, start)
}

// agenticBuild runs Devstral's tool-calling loop to completion, or
// returns ok=false if the model never produces any files (a network
// error, a bare-text refusal, or exhausting maxIterations).
func (a *Agent) agenticBuild(ctx context.Context, sessionID, description, siteType string) (files map[string]string, summary string, features []string, ok bool) {
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Build a %s: %s", siteType, description)},
	}
	files = make(map[string]string)

	for iter := 0; iter < maxIterations; iter++ {
		if ctx.Err() != nil {
			return nil, "", nil, false
		}

		resp, err := a.toolClient.Chat(ctx, messages, buildTools, 0.7, 8192)
		if err != nil {
			logger.Warn("build: devstral call failed, falling back", "session_id", sessionID, "error", err)
			return nil, "", nil, false
		}

		if len(resp.ToolCalls) > 0 {
			messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
			finished := false
			for _, tc := range resp.ToolCalls {
				result, done := a.handleToolCall(ctx, sessionID, files, &summary, &features, tc)
				messages = append(messages, llm.Message{Role: "tool", Content: result, ToolCallID: tc.ID})
				if done {
					finished = true
				}
			}
			if finished {
				return files, summary, features, true
			}
			continue
		}

		if resp.Content != "" {
			messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})
			if len(files) == 0 {
				if strings.Contains(resp.Content, "<!DOCTYPE") || strings.Contains(resp.Content, "<html") {
					files["index.html"] = resp.Content
					return files, summary, features, true
				}
				messages = append(messages, llm.Message{
					Role:    "user",
					Content: "Please create the HTML file using the create_file tool, then call finish_build.",
				})
				continue
			}
			return files, summary, features, true
		}

		break
	}

	if len(files) > 0 {
		return files, summary, features, true
	}
	return nil, "", nil, false
}

func (a *Agent) handleToolCall(ctx context.Context, sessionID string, files map[string]string, summary *string, features *[]string, tc llm.ToolCall) (result string, complete bool) {
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return fmt.Sprintf("Error: invalid JSON arguments: %s", truncate(tc.Arguments, 100)), false
	}

	switch tc.Name {
	case "create_file":
		filename := stringArg(args, "filename", "index.html")
		content := stringArg(args, "content", "")
		description := stringArg(args, "description", "")
		files[filename] = content

		msg := fmt.Sprintf("Created %s", filename)
		if description != "" {
			msg += ": " + description
		}
		a.bus.Emit(ctx, sessionID, "build_progress", map[string]any{"step": "generate", "message": msg, "file": filename})
		return fmt.Sprintf("Successfully created %s (%d bytes)", filename, len(content)), false

	case "update_file":
		filename := stringArg(args, "filename", "index.html")
		content := stringArg(args, "content", "")
		changes := stringArg(args, "changes", "")
		if _, exists := files[filename]; !exists {
			return fmt.Sprintf("Error: file %s does not exist. Use create_file first.", filename), false
		}
		files[filename] = content

		msg := fmt.Sprintf("Updated %s", filename)
		if changes != "" {
			msg += ": " + changes
		}
		a.bus.Emit(ctx, sessionID, "build_progress", map[string]any{"step": "generate", "message": msg, "file": filename})
		return fmt.Sprintf("Successfully updated %s", filename), false

	case "finish_build":
		*summary = stringArg(args, "summary", "Website built successfully")
		if raw, ok := args["features"].([]any); ok {
			for _, f := range raw {
				if s, ok := f.(string); ok {
					*features = append(*features, s)
				}
			}
		}
		return "Build marked as complete. Generating preview...", true

	default:
		return fmt.Sprintf("Unknown tool: %s", tc.Name), false
	}
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// fallbackBuild is used when the tool-calling path is unavailable or
// produced nothing: a single plain-text generation against whichever
// provider is configured, or a canned page if neither is.
func (a *Agent) fallbackBuild(ctx context.Context, sessionID, description, siteType string) string {
	a.bus.Emit(ctx, sessionID, "build_progress", map[string]any{
		"step":           "generate",
		"message":        "Generating code...",
		"completed_step": "plan",
	})

	if a.simpleClient != nil {
		html, err := a.generateSimple(ctx, description, siteType)
		if err == nil {
			return html
		}
		logger.Warn("build: simple generation failed, using demo page", "session_id", sessionID, "error", err)
	}
	return demoHTML(siteType, description)
}

func (a *Agent) generateSimple(ctx context.Context, description, siteType string) (string, error) {
	resp, err := a.simpleClient.Chat(ctx, []llm.Message{
		{Role: "system", Content: simplePrompt},
		{Role: "user", Content: fmt.Sprintf("Create a %s: %s", siteType, description)},
	}, nil, 0.7, 8192)
	if err != nil {
		return "", fmt.Errorf("simple generation: %w", err)
	}
	return stripCodeFences(resp.Content), nil
}

func stripCodeFences(html string) string {
	html = strings.TrimSpace(html)
	if !strings.HasPrefix(html, "```") {
		return html
	}
	lines := strings.Split(html, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func (a *Agent) complete(ctx context.Context, sessionID, description, siteType string, files map[string]string, summary string, features []string, start time.Time) {
	html, ok := files["index.html"]
	if !ok {
		for _, v := range files {
			html = v
			break
		}
	}

	previewID := uuid.New().String()[:8]
	if err := a.store.Save(ctx, "build", "preview:"+previewID, html, previewTTL); err != nil {
		logger.Error("build: save preview failed", "preview_id", previewID, "error", err)
	}
	previewURL := fmt.Sprintf("%s/api/build/preview/%s", a.publicURL, previewID)

	a.bus.Emit(ctx, sessionID, "build_progress", map[string]any{
		"step":           "polish",
		"message":        "Adding final touches...",
		"completed_step": "generate",
	})

	if summary == "" {
		summary = fmt.Sprintf("Your %s is ready!", siteType)
	}
	a.bus.Emit(ctx, sessionID, "build_complete", map[string]any{
		"message":        summary,
		"preview_url":    previewURL,
		"preview_id":     previewID,
		"features":       features,
		"completed_step": "polish",
	})

	buildSession := models.BuildSession{
		ID:          sessionID,
		Description: description,
		Files:       files,
		Status:      "complete",
		PreviewID:   previewID,
		Summary:     summary,
		Features:    features,
		CreatedAt:   time.Now(),
	}
	if err := a.store.Save(ctx, "session", sessionID, buildSession, session.DefaultTTL); err != nil {
		logger.Error("build: save session failed", "session_id", sessionID, "error", err)
	}

	a.logTrace(sessionID, start, true, len(files))
}

func (a *Agent) timedOut(ctx context.Context, sessionID string, start time.Time) {
	logger.Error("build: workflow timed out", "session_id", sessionID)
	a.bus.Emit(ctx, sessionID, "build_error", map[string]any{
		"message": "Build timed out. Please try again with a simpler request.",
	})
	a.logTrace(sessionID, start, false, 0)
}

func (a *Agent) logTrace(sessionID string, start time.Time, success bool, fileCount int) {
	if a.traces == nil {
		return
	}
	a.traces.Log(context.Background(), tracing.Trace{
		Operation: "build_session",
		Success:   success,
		DurationS: time.Since(start).Seconds(),
		Metadata: map[string]any{
			"session_id": sessionID,
			"file_count": fileCount,
		},
	})
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// demoHTML is the canned page served when no LLM provider is configured
// at all.
func demoHTML(siteType, notes string) string {
	title := strings.TrimSpace(notes)
	if idx := strings.Index(title, ","); idx >= 0 {
		title = title[:idx]
	}
	if title == "" {
		title = siteType
	}
	title = capitalizeWords(title)

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<link href="https://fonts.googleapis.com/css2?family=Inter:wght@300;400;500;600;700&display=swap" rel="stylesheet">
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: 'Inter', sans-serif; color: #1a1a2e; background: #fafafa; }
.hero {
  min-height: 80vh; display: flex; flex-direction: column;
  align-items: center; justify-content: center; text-align: center;
  background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%);
  color: white; padding: 2rem;
}
.hero h1 { font-size: 3.5rem; font-weight: 700; margin-bottom: 1rem; }
.hero p { font-size: 1.25rem; opacity: 0.9; max-width: 600px; line-height: 1.6; }
.cta {
  margin-top: 2rem; padding: 1rem 2.5rem; background: white; color: #667eea;
  border: none; border-radius: 50px; font-size: 1.1rem; font-weight: 600;
  cursor: pointer; transition: transform 0.2s, box-shadow 0.2s;
}
.cta:hover { transform: translateY(-2px); box-shadow: 0 10px 30px rgba(0,0,0,0.2); }
.features {
  display: grid; grid-template-columns: repeat(auto-fit, minmax(280px, 1fr));
  gap: 2rem; padding: 5rem 2rem; max-width: 1100px; margin: 0 auto;
}
.feature {
  background: white; padding: 2rem; border-radius: 16px;
  box-shadow: 0 4px 20px rgba(0,0,0,0.06); transition: transform 0.2s;
}
.feature:hover { transform: translateY(-4px); }
.feature .icon { font-size: 2.5rem; margin-bottom: 1rem; }
.feature h3 { font-size: 1.25rem; margin-bottom: 0.5rem; }
.feature p { color: #666; line-height: 1.6; }
footer {
  text-align: center; padding: 3rem 2rem; background: #1a1a2e; color: rgba(255,255,255,0.7);
  font-size: 0.9rem;
}
</style>
</head>
<body>
<section class="hero">
  <h1>%s</h1>
  <p>Welcome to our site. We're building something amazing. Stay tuned for updates.</p>
  <button class="cta">Get Started</button>
</section>
<section class="features">
  <div class="feature">
    <div class="icon">&#x2728;</div>
    <h3>Quality Service</h3>
    <p>We deliver exceptional quality in everything we do, ensuring your complete satisfaction.</p>
  </div>
  <div class="feature">
    <div class="icon">&#x1F680;</div>
    <h3>Fast &amp; Reliable</h3>
    <p>Quick turnaround times without compromising on quality. Your time matters to us.</p>
  </div>
  <div class="feature">
    <div class="icon">&#x1F4AC;</div>
    <h3>24/7 Support</h3>
    <p>Our dedicated team is always here to help. Reach out anytime, day or night.</p>
  </div>
</section>
<footer>
  <p>&copy; 2026 %s. Built with Friendly AI.</p>
</footer>
</body>
</html>`, title, title, title)
}
