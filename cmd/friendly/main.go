// Command friendly runs the Friendly call-orchestration HTTP service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/DeepNandre/friendlyy/internal/agent/blitz"
	"github.com/DeepNandre/friendlyy/internal/agent/build"
	"github.com/DeepNandre/friendlyy/internal/agent/callfriend"
	"github.com/DeepNandre/friendlyy/internal/agent/queue"
	"github.com/DeepNandre/friendlyy/internal/api"
	"github.com/DeepNandre/friendlyy/internal/banner"
	"github.com/DeepNandre/friendlyy/internal/config"
	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/llm"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/media"
	"github.com/DeepNandre/friendlyy/internal/places"
	"github.com/DeepNandre/friendlyy/internal/session"
	"github.com/DeepNandre/friendlyy/internal/telephony"
	"github.com/DeepNandre/friendlyy/internal/telephony/webhooks"
	"github.com/DeepNandre/friendlyy/internal/tracing"
	"github.com/DeepNandre/friendlyy/internal/ttscache"
	"github.com/DeepNandre/friendlyy/internal/voice"
)

func main() {
	cfg := config.Load()
	logger.Init(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
	}

	store := session.New(cfg.RedisURL)
	bus := eventbus.New(redisClient)
	traces := tracing.New(redisClient)
	tts := ttscache.New(redisClient)

	providerCfg := llm.Config{NvidiaAPIKey: cfg.NvidiaAPIKey, MistralAPIKey: cfg.MistralAPIKey}
	classifier := llm.NewClassifier(providerCfg)
	builderClient, buildSupportsTools := llm.NewBuilder(providerCfg)
	var toolClient *llm.Client
	if buildSupportsTools {
		toolClient = builderClient
	}

	synth := voice.New(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, tts)
	resolver := places.New(cfg.GooglePlacesAPIKey)
	driver := telephony.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	reconciler := webhooks.New(store, bus, driver)
	bridges := media.NewManager(store, bus)

	blitzAgent := blitz.New(store, bus, resolver, driver, synth, traces, cfg.BackendURL)
	queueAgent := queue.New(store, bus, driver, classifier, cfg.BackendURL)
	callFriendAgent := callfriend.New(store, bus, driver, classifier, cfg.BackendURL)
	buildAgent := build.New(store, bus, traces, toolClient, classifier, cfg.BackendURL)

	server := api.NewServer(fmt.Sprintf(":%d", cfg.Port), api.Deps{
		Store:              store,
		Bus:                bus,
		Classifier:         classifier,
		Resolver:           resolver,
		TTS:                tts,
		Driver:             driver,
		Reconciler:         reconciler,
		Bridges:            bridges,
		Traces:             traces,
		BlitzAgent:         blitzAgent,
		QueueAgent:         queueAgent,
		CallFriendAgent:    callFriendAgent,
		BuildAgent:         buildAgent,
		PublicURL:          cfg.BackendURL,
		AIVoiceURL:         cfg.AIVoiceWebSocketURL,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	printBanner(cfg)

	if err := server.Start(); err != nil {
		slog.Error("failed to start HTTP server", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func printBanner(cfg *config.Config) {
	demoMode := "no"
	if cfg.DemoMode {
		demoMode = "yes"
	}
	hasLLM := "no"
	if cfg.HasLLM() {
		hasLLM = "yes"
	}
	banner.Print("Friendly — call orchestration engine", []banner.ConfigLine{
		{Label: "Port", Value: fmt.Sprint(cfg.Port)},
		{Label: "Public URL", Value: cfg.BackendURL},
		{Label: "Demo mode", Value: demoMode},
		{Label: "LLM configured", Value: hasLLM},
		{Label: "Redis", Value: redisLabel(cfg.RedisURL)},
	})
}

func redisLabel(url string) string {
	if url == "" {
		return "in-memory fallback"
	}
	return "connected"
}
