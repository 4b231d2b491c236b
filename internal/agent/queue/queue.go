// Package queue implements the Queue agent: place a call, navigate its
// IVR with LLM assistance, hold on the user's behalf, and detect when a
// human picks up — all under a phase guard that stops a slow writer from
// ever rewinding a more advanced state.
package queue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/llm"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/session"
	"github.com/DeepNandre/friendlyy/internal/telephony"
)

const (
	defaultMaxHoldMinutes = 30
	holdTickInterval       = 30 * time.Second
)

// holdPhrases are case-insensitively matched against gathered speech; any
// match means the caller is still hearing a hold loop, not a human. This
// list is a contract — tests pin every entry.
var holdPhrases = []string{
	"your call is important",
	"please hold",
	"position in the queue",
	"calls may be recorded",
	"all of our agents are busy",
	"please stay on the line",
	"continue to hold",
}

// greetings are exact matches (after stripping punctuation and
// lowercasing) that a generic IVR greeting might produce before a human
// actually speaks — rejected the same as a hold phrase.
var greetings = map[string]bool{
	"hello":          true,
	"hi":             true,
	"welcome":        true,
	"good morning":   true,
	"good afternoon": true,
}

var punctuation = regexp.MustCompile(`[^\w\s]`)

// isHumanSpeech applies the human-speech heuristic from the IVR/hold
// detection step.
func isHumanSpeech(heard string) bool {
	trimmed := strings.TrimSpace(heard)
	if len(strings.ReplaceAll(trimmed, " ", "")) < 5 {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range holdPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}

	stripped := strings.TrimSpace(punctuation.ReplaceAllString(lower, ""))
	if greetings[stripped] {
		return false
	}

	return true
}

// Agent runs the Queue IVR+hold state machine.
type Agent struct {
	store     *session.Store
	bus       *eventbus.Bus
	driver    *telephony.Driver
	classifier *llm.Client
	publicURL string

	mu      sync.Mutex
	tickers map[string]context.CancelFunc
}

// New creates a Queue Agent.
func New(store *session.Store, bus *eventbus.Bus, driver *telephony.Driver, classifier *llm.Client, publicURL string) *Agent {
	return &Agent{
		store:      store,
		bus:        bus,
		driver:     driver,
		classifier: classifier,
		publicURL:  publicURL,
		tickers:    make(map[string]context.CancelFunc),
	}
}

// save persists sess under the phase guard: if expectedPhase is non-empty
// and the currently stored phase has already advanced past it, the write
// is skipped, matching the original save_queue_session contract.
func (a *Agent) save(ctx context.Context, sess *models.QueueSession, expectedPhase models.QueuePhase) bool {
	if expectedPhase != "" {
		var current models.QueueSession
		if ok, err := a.store.Load(ctx, "queue", sess.ID, &current); err == nil && ok {
			if models.PhaseOrder[current.Phase] > models.PhaseOrder[expectedPhase] {
				logger.Info("queue: phase guard skipped write", "session_id", sess.ID,
					"current_phase", current.Phase, "expected_phase", expectedPhase)
				return false
			}
		}
	}
	if err := a.store.Save(ctx, "queue", sess.ID, *sess, session.QueueTTL); err != nil {
		logger.Error("queue: save failed", "session_id", sess.ID, "error", err)
		return false
	}
	return true
}

// Start places the call and begins the hold ticker. Returns immediately;
// the IVR/hold/human-check handlers drive the rest of the machine as the
// carrier posts call-control callbacks.
func (a *Agent) Start(ctx context.Context, sessionID, phone, businessName, reason string, maxHoldMinutes int) models.QueueSession {
	if maxHoldMinutes <= 0 {
		maxHoldMinutes = defaultMaxHoldMinutes
	}

	sess := models.QueueSession{
		ID:             sessionID,
		Phone:          phone,
		BusinessName:   businessName,
		Reason:         reason,
		Phase:          models.QueueInitiating,
		MaxHoldMinutes: maxHoldMinutes,
		CreatedAt:      time.Now(),
	}
	a.save(ctx, &sess, "")
	a.bus.Emit(ctx, sessionID, "queue_started", map[string]any{"phone": phone, "business": businessName})

	ivrURL := fmt.Sprintf("%s/api/queue/ivr/%s", a.publicURL, sessionID)
	statusURL := fmt.Sprintf("%s/api/queue/webhook/%s", a.publicURL, sessionID)

	carrierSID, err := a.driver.Place(ctx, phone, ivrURL, statusURL, telephony.PlaceOptions{Timeout: 30 * time.Second})
	if err != nil {
		sess.Phase = models.QueueFailed
		a.save(ctx, &sess, models.QueueInitiating)
		a.bus.Emit(ctx, sessionID, "queue_failed", map[string]any{"error": err.Error()})
		return sess
	}
	sess.CarrierSID = carrierSID
	sess.Phase = models.QueueRinging
	a.save(ctx, &sess, models.QueueInitiating)

	a.startTicker(sessionID)
	return sess
}

func (a *Agent) startTicker(sessionID string) {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.tickers[sessionID] = cancel
	a.mu.Unlock()

	go a.runTicker(ctx, sessionID)
}

func (a *Agent) stopTicker(sessionID string) {
	a.mu.Lock()
	cancel, ok := a.tickers[sessionID]
	delete(a.tickers, sessionID)
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

// runTicker updates hold_elapsed_s every 30s while the session is in
// RINGING/IVR/HOLD, and fails the session if it exceeds max_hold_minutes.
// Any internal crash surfaces as queue_failed rather than disappearing.
func (a *Agent) runTicker(ctx context.Context, sessionID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("queue: hold ticker panicked", "session_id", sessionID, "recover", r)
			a.bus.Emit(context.Background(), sessionID, "queue_failed", map[string]any{"error": fmt.Sprint(r)})
		}
	}()

	ticker := time.NewTicker(holdTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var sess models.QueueSession
			ok, err := a.store.Load(ctx, "queue", sessionID, &sess)
			if err != nil || !ok {
				return
			}
			if sess.Phase != models.QueueRinging && sess.Phase != models.QueueIVR && sess.Phase != models.QueueHold {
				return
			}

			sess.HoldElapsedS += holdTickInterval.Seconds()
			if sess.HoldElapsedS > float64(sess.MaxHoldMinutes*60) {
				sess.Phase = models.QueueFailed
				a.save(ctx, &sess, models.QueueHold)
				a.bus.Emit(ctx, sessionID, "queue_failed", map[string]any{"reason": "max hold time exceeded"})
				return
			}

			a.save(ctx, &sess, sess.Phase)
			a.bus.Emit(ctx, sessionID, "queue_hold_update", map[string]any{"hold_elapsed_s": sess.HoldElapsedS})
		}
	}
}

// InitialGatherMarkup is the call-control markup played the moment the
// call connects: a long speech-gather posting to the IVR handler, falling
// back to the hold loop on timeout.
func (a *Agent) InitialGatherMarkup(sessionID string) string {
	ivrURL := fmt.Sprintf("%s/api/queue/ivr/%s", a.publicURL, sessionID)
	holdURL := fmt.Sprintf("%s/api/queue/hold/%s", a.publicURL, sessionID)
	return telephony.GatherScript(ivrURL, holdURL, 15)
}

// HandleIVR processes one IVR turn: classify the gathered speech via LLM
// into a DTMF digit string, HOLD, or HUMAN, and render the matching
// call-control markup.
func (a *Agent) HandleIVR(ctx context.Context, sessionID, heard string) string {
	var sess models.QueueSession
	ok, err := a.store.Load(ctx, "queue", sessionID, &sess)
	if err != nil || !ok {
		return telephony.HoldLoopScript(a.humanCheckURL(sessionID), a.holdLoopURL(sessionID))
	}

	sess.Phase = models.QueueIVR
	sess.IVRSteps = append(sess.IVRSteps, models.IVRStep{Heard: heard, At: time.Now()})
	a.save(ctx, &sess, models.QueueRinging)

	decision := a.classifyIVRTurn(ctx, heard, sess.Reason)

	switch {
	case decision == "HOLD":
		sess.Phase = models.QueueHold
		now := time.Now()
		sess.HoldStartedAt = &now
		a.save(ctx, &sess, models.QueueIVR)
		a.bus.Emit(ctx, sessionID, "queue_hold", map[string]any{"phone": sess.Phone})
		return telephony.HoldLoopScript(a.humanCheckURL(sessionID), a.holdLoopURL(sessionID))

	case decision == "HUMAN":
		return a.humanDetected(ctx, sessionID, &sess)

	case isDigits(decision):
		sess.IVRSteps[len(sess.IVRSteps)-1].Pressed = decision
		a.save(ctx, &sess, models.QueueIVR)
		return telephony.DTMFScript(decision, fmt.Sprintf("%s/api/queue/ivr/%s", a.publicURL, sessionID))

	default:
		// Ambiguous — default to HOLD per the queue agent's decision contract.
		sess.Phase = models.QueueHold
		now := time.Now()
		sess.HoldStartedAt = &now
		a.save(ctx, &sess, models.QueueIVR)
		a.bus.Emit(ctx, sessionID, "queue_hold", map[string]any{"phone": sess.Phone})
		return telephony.HoldLoopScript(a.humanCheckURL(sessionID), a.holdLoopURL(sessionID))
	}
}

// HandleHoldLoopTimeout re-renders the hold loop when its speech-gather
// times out without anything being heard.
func (a *Agent) HandleHoldLoopTimeout(sessionID string) string {
	return telephony.HoldLoopScript(a.humanCheckURL(sessionID), a.holdLoopURL(sessionID))
}

// HandleHumanCheck applies the human-speech heuristic to a hold-loop
// gather result, jumping to human-detected on acceptance or re-rendering
// the hold loop on rejection.
func (a *Agent) HandleHumanCheck(ctx context.Context, sessionID, heard string) string {
	if !isHumanSpeech(heard) {
		return telephony.HoldLoopScript(a.humanCheckURL(sessionID), a.holdLoopURL(sessionID))
	}

	var sess models.QueueSession
	ok, err := a.store.Load(ctx, "queue", sessionID, &sess)
	if err != nil || !ok {
		return telephony.HumanDetectedScript()
	}
	return a.humanDetected(ctx, sessionID, &sess)
}

func (a *Agent) humanDetected(ctx context.Context, sessionID string, sess *models.QueueSession) string {
	sess.Phase = models.QueueHumanDetected
	sess.HumanDetected = true
	sess.CallbackNumber = sess.Phone
	if sess.HoldStartedAt != nil {
		sess.HoldElapsedS = time.Since(*sess.HoldStartedAt).Seconds()
	}
	a.save(ctx, sess, models.QueueHold)
	a.stopTicker(sessionID)

	a.bus.Emit(ctx, sessionID, "queue_human_detected", map[string]any{
		"phone":     sess.Phone,
		"business":  sess.BusinessName,
		"hold_time": sess.HoldElapsedS,
	})
	return telephony.HumanDetectedScript()
}

// Cancel transitions a live queue session to CANCELLED and hangs up.
func (a *Agent) Cancel(ctx context.Context, sessionID string) error {
	var sess models.QueueSession
	ok, err := a.store.Load(ctx, "queue", sessionID, &sess)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("queue session not found: %s", sessionID)
	}

	sess.Phase = models.QueueCancelled
	a.save(ctx, &sess, sess.Phase)
	a.stopTicker(sessionID)
	a.bus.Emit(ctx, sessionID, "queue_failed", map[string]any{"cancelled": true})

	if sess.CarrierSID != "" {
		return a.driver.Hangup(ctx, sess.CarrierSID)
	}
	return nil
}

const ivrSystemPrompt = `You are navigating an automated phone menu (IVR) on behalf of a user who wants: %s

The IVR just said: "%s"

Respond with exactly one of:
- A string of digits to press (e.g. "1" or "2")
- HOLD (if this sounds like hold music, silence, or a generic "please wait" message)
- HUMAN (if a real person is speaking, not a recorded menu)

Respond with only the digits, HOLD, or HUMAN — no other text.`

func (a *Agent) classifyIVRTurn(ctx context.Context, heard, reason string) string {
	if a.classifier == nil {
		return "HOLD"
	}

	prompt := fmt.Sprintf(ivrSystemPrompt, reasonOrDefault(reason), heard)
	resp, err := a.classifier.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, 0.1, 10)
	if err != nil {
		logger.Warn("queue: IVR classification failed, defaulting to HOLD", "error", err)
		return "HOLD"
	}

	decision := strings.ToUpper(strings.TrimSpace(resp.Content))
	switch {
	case decision == "HOLD", decision == "HUMAN":
		return decision
	case isDigits(decision):
		return decision
	default:
		return "AMBIGUOUS"
	}
}

func (a *Agent) humanCheckURL(sessionID string) string {
	return fmt.Sprintf("%s/api/queue/human-check/%s", a.publicURL, sessionID)
}

func (a *Agent) holdLoopURL(sessionID string) string {
	return fmt.Sprintf("%s/api/queue/hold/%s", a.publicURL, sessionID)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "general inquiry"
	}
	return reason
}
