// Package config loads server configuration from command-line flags with
// environment variable overrides, matching the env vars the original
// service expects.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the orchestrator's runtime configuration.
type Config struct {
	Port     int
	LogLevel string
	DemoMode bool

	RedisURL string

	NvidiaAPIKey  string
	MistralAPIKey string

	GooglePlacesAPIKey string

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioPhoneNumber   string
	ElevenLabsAPIKey    string
	ElevenLabsVoiceID   string
	BackendURL          string
	AIVoiceWebSocketURL string

	ComposioAPIKey string
	WandbAPIKey    string
	WeaveProject   string

	CORSOrigins        []string
	RateLimitPerMinute int

	HTTPClientTimeout time.Duration
}

// Load loads configuration from flags and environment variables. Flags set
// the defaults; environment variables, when present, always win — this
// matches how the service is actually deployed (env-driven containers).
func Load() *Config {
	cfg := &Config{
		HTTPClientTimeout: 30 * time.Second,
	}

	flag.IntVar(&cfg.Port, "port", 8000, "HTTP listen port")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.RedisURL, "redis-url", "", "Redis connection URL (redis://host:port/db)")
	flag.StringVar(&cfg.BackendURL, "backend-url", "http://localhost:8000", "Publicly reachable base URL of this service")

	flag.Parse()

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if demo := os.Getenv("DEMO_MODE"); demo != "" {
		cfg.DemoMode = demo == "1" || demo == "true"
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	cfg.NvidiaAPIKey = os.Getenv("NVIDIA_API_KEY")
	cfg.MistralAPIKey = os.Getenv("MISTRAL_API_KEY")
	cfg.GooglePlacesAPIKey = os.Getenv("GOOGLE_PLACES_API_KEY")
	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioPhoneNumber = os.Getenv("TWILIO_PHONE_NUMBER")
	cfg.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	cfg.ElevenLabsVoiceID = os.Getenv("ELEVENLABS_VOICE_ID")
	if backendURL := os.Getenv("BACKEND_URL"); backendURL != "" {
		cfg.BackendURL = backendURL
	}
	cfg.AIVoiceWebSocketURL = os.Getenv("AI_VOICE_WS_URL")

	cfg.ComposioAPIKey = os.Getenv("COMPOSIO_API_KEY")
	cfg.WandbAPIKey = os.Getenv("WANDB_API_KEY")
	cfg.WeaveProject = os.Getenv("WEAVE_PROJECT")

	cfg.RateLimitPerMinute = 60
	if rateLimit := os.Getenv("RATE_LIMIT_PER_MINUTE"); rateLimit != "" {
		if n, err := strconv.Atoi(rateLimit); err == nil && n > 0 {
			cfg.RateLimitPerMinute = n
		}
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	// No Redis configured means we're running the in-memory demo
	// experience regardless of DEMO_MODE; LLM keys are not consulted here.
	if cfg.RedisURL == "" {
		cfg.DemoMode = true
	}

	return cfg
}

// HasLLM reports whether any LLM provider key is configured.
func (c *Config) HasLLM() bool {
	return c.NvidiaAPIKey != "" || c.MistralAPIKey != ""
}
