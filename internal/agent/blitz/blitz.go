// Package blitz implements the Blitz agent: fan out to up to three
// businesses concurrently, wait for every call to reach a terminal
// outcome, and summarize the results.
package blitz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/places"
	"github.com/DeepNandre/friendlyy/internal/session"
	"github.com/DeepNandre/friendlyy/internal/telephony"
	"github.com/DeepNandre/friendlyy/internal/tracing"
	"github.com/DeepNandre/friendlyy/internal/voice"
)

const (
	maxBusinesses = 3
	waitPoll      = time.Second
	waitTimeout   = 120 * time.Second
)

// Agent runs the Blitz fan-out workflow.
type Agent struct {
	store     *session.Store
	bus       *eventbus.Bus
	resolver  *places.Resolver
	driver    *telephony.Driver
	synth     *voice.Synthesizer
	traces    *tracing.Store
	publicURL string
}

// New creates a Blitz Agent. publicURL is this service's externally
// reachable base URL, used to build carrier-facing callback URLs.
func New(store *session.Store, bus *eventbus.Bus, resolver *places.Resolver, driver *telephony.Driver, synth *voice.Synthesizer, traces *tracing.Store, publicURL string) *Agent {
	return &Agent{store: store, bus: bus, resolver: resolver, driver: driver, synth: synth, traces: traces, publicURL: publicURL}
}

// Run executes the full Blitz workflow for one session, synchronously —
// callers that want it backgrounded launch it in its own goroutine.
func (a *Agent) Run(ctx context.Context, sessionID, userMessage string, params models.RouterParams, coords *places.LatLng) {
	start := time.Now()
	blitz := models.BlitzSession{
		ID:          sessionID,
		UserMessage: userMessage,
		ParsedParams: params,
		Status:      models.BlitzSearching,
		CreatedAt:   time.Now(),
	}

	if err := a.store.Save(ctx, "session", sessionID, blitz, session.DefaultTTL); err != nil {
		logger.Error("blitz: save initial session failed", "session_id", sessionID, "error", err)
	}
	a.bus.Emit(ctx, sessionID, "status", map[string]any{
		"status":  "searching",
		"message": fmt.Sprintf("Finding %s near you...", serviceOrDefault(params.Service)),
	})

	location := params.Location
	if location == "" {
		location = "London"
	}

	businesses := a.resolver.Search(ctx, serviceOrDefault(params.Service), location, coords, maxBusinesses)
	if len(businesses) > maxBusinesses {
		businesses = businesses[:maxBusinesses]
	}
	blitz.Businesses = businesses

	if len(businesses) == 0 {
		blitz.Status = models.BlitzComplete
		blitz.Summary = fmt.Sprintf("Sorry, I couldn't find any %s with phone numbers in that area.", serviceOrDefault(params.Service))
		a.finish(ctx, sessionID, &blitz, start, false)
		return
	}

	blitz.Status = models.BlitzCalling
	blitz.Calls = make([]models.CallRecord, len(businesses))
	for i, b := range businesses {
		blitz.Calls[i] = models.CallRecord{ID: uuid.New().String(), Business: b, Status: models.CallPending}
	}

	a.bus.Emit(ctx, sessionID, "status", map[string]any{
		"status":     "calling",
		"message":    fmt.Sprintf("Calling %d businesses...", len(businesses)),
		"businesses": businesses,
	})
	if err := a.store.Save(ctx, "session", sessionID, blitz, session.DefaultTTL); err != nil {
		logger.Error("blitz: save calling session failed", "session_id", sessionID, "error", err)
	}

	scriptText := voice.ScriptText(serviceOrDefault(params.Service), params.Timeframe, "availability and call-out fee")
	a.fanOut(ctx, sessionID, &blitz, scriptText)

	if err := a.store.Save(ctx, "session", sessionID, blitz, session.DefaultTTL); err != nil {
		logger.Error("blitz: save post-fanout session failed", "session_id", sessionID, "error", err)
	}

	a.waitForCompletion(ctx, sessionID, &blitz)

	blitz.Status = models.BlitzComplete
	blitz.Summary = summarize(&blitz)
	a.finish(ctx, sessionID, &blitz, start, true)
}

// fanOut places all calls concurrently. Every CallRecord is mutated
// in-place by its own goroutine (distinct slice index), then the whole
// session is persisted once after every goroutine settles — never once per
// call, which would race concurrent writers.
func (a *Agent) fanOut(ctx context.Context, sessionID string, blitz *models.BlitzSession, scriptText string) {
	audioHash, hasAudio := "", false
	if a.synth != nil {
		audioHash, hasAudio = a.synth.Synthesize(ctx, scriptText)
	}

	var wg sync.WaitGroup
	for i := range blitz.Calls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			call := &blitz.Calls[i]
			call.Status = models.CallRinging
			now := time.Now()
			call.StartedAt = &now

			a.bus.Emit(ctx, sessionID, "call_started", map[string]any{
				"business": call.Business.Name,
				"phone":    call.Business.Phone,
				"status":   "ringing",
			})

			callControlURL := a.callControlURL(sessionID, call.ID, audioHash, hasAudio)
			statusCallbackURL := a.statusCallbackURL(sessionID, call.ID)

			carrierSID, err := a.driver.Place(ctx, call.Business.Phone, callControlURL, statusCallbackURL, telephony.PlaceOptions{
				Timeout: 30 * time.Second,
				Record:  true,
				AMD:     true,
			})
			if err != nil {
				call.Status = models.CallFailed
				errMsg := "Twilio not configured"
				if !a.driver.DemoMode() {
					errMsg = err.Error()
				}
				call.Error = &errMsg
				a.bus.Emit(ctx, sessionID, "call_failed", map[string]any{
					"business": call.Business.Name,
					"error":    errMsg,
				})
				return
			}
			call.CarrierSID = carrierSID
		}(i)
	}
	wg.Wait()
}

func (a *Agent) callControlURL(sessionID, callID, audioHash string, hasAudio bool) string {
	base := fmt.Sprintf("%s/api/blitz/twiml/%s/%s", a.publicURL, sessionID, callID)
	if hasAudio {
		return fmt.Sprintf("%s?audio_hash=%s", base, audioHash)
	}
	return base
}

func (a *Agent) statusCallbackURL(sessionID, callID string) string {
	return fmt.Sprintf("%s/api/blitz/webhook?session_id=%s&call_id=%s", a.publicURL, sessionID, callID)
}

// waitForCompletion polls the Session Store every second, copying
// webhook-updated CallRecords into the local session, until every call is
// terminal or 120s elapses.
func (a *Agent) waitForCompletion(ctx context.Context, sessionID string, blitz *models.BlitzSession) {
	deadline := time.Now().Add(waitTimeout)
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()

	for {
		var current models.BlitzSession
		if ok, err := a.store.Load(ctx, "session", sessionID, &current); err == nil && ok {
			blitz.Calls = current.Calls
		}

		if allTerminal(blitz.Calls) {
			return
		}
		if time.Now().After(deadline) {
			logger.Warn("blitz: session timed out waiting for calls", "session_id", sessionID)
			for i := range blitz.Calls {
				if !blitz.Calls[i].Status.IsTerminal() {
					blitz.Calls[i].Status = models.CallFailed
					msg := "Timeout"
					blitz.Calls[i].Error = &msg
				}
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func allTerminal(calls []models.CallRecord) bool {
	for _, c := range calls {
		if !c.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func (a *Agent) finish(ctx context.Context, sessionID string, blitz *models.BlitzSession, start time.Time, withResults bool) {
	if err := a.store.Save(ctx, "session", sessionID, *blitz, session.DefaultTTL); err != nil {
		logger.Error("blitz: save final session failed", "session_id", sessionID, "error", err)
	}

	results := make([]map[string]any, 0, len(blitz.Calls))
	if withResults {
		for _, c := range blitz.Calls {
			results = append(results, map[string]any{
				"business": c.Business.Name,
				"status":   string(c.Status),
				"result":   c.Result,
			})
		}
	}
	a.bus.Emit(ctx, sessionID, "session_complete", map[string]any{
		"summary": blitz.Summary,
		"results": results,
	})

	if a.traces != nil {
		a.traces.Log(ctx, tracing.Trace{
			Operation: "blitz_session",
			Success:   len(successfulCalls(blitz)) > 0 || !withResults,
			DurationS: time.Since(start).Seconds(),
			Metadata: map[string]any{
				"total_calls":      len(blitz.Calls),
				"successful_calls": len(successfulCalls(blitz)),
				"service_type":     serviceOrDefault(blitz.ParsedParams.Service),
			},
		})
	}
}

func successfulCalls(blitz *models.BlitzSession) []models.CallRecord {
	out := make([]models.CallRecord, 0, len(blitz.Calls))
	for _, c := range blitz.Calls {
		if c.Status == models.CallComplete && c.Result != nil {
			out = append(out, c)
		}
	}
	return out
}

func summarize(blitz *models.BlitzSession) string {
	successful := successfulCalls(blitz)
	if len(successful) == 0 {
		return fmt.Sprintf("I called %d %s but couldn't get through to any of them. Would you like me to try different ones?",
			len(blitz.Calls), serviceOrDefault(blitz.ParsedParams.Service))
	}

	var lines []string
	for _, c := range successful {
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Business.Name, *c.Result))
	}
	return fmt.Sprintf("Found %d options for you:\n\n%s", len(successful), strings.Join(lines, "\n"))
}

func serviceOrDefault(service string) string {
	if service == "" {
		return "service"
	}
	return service
}
