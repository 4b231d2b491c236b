// Package webhooks implements the Webhook Reconciler: it maps carrier
// status callbacks onto the matching BlitzSession CallRecord, guarding
// against out-of-order writes by never overwriting a terminal status.
package webhooks

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/session"
	"github.com/DeepNandre/friendlyy/internal/telephony"
)

// carrierStatusMap maps the carrier's call status strings to our
// CallStatus, matching the deployment's TWILIO_STATUS_MAP.
var carrierStatusMap = map[string]models.CallStatus{
	"initiated":   models.CallPending,
	"ringing":     models.CallRinging,
	"in-progress": models.CallConnected,
	"answered":    models.CallConnected,
	"completed":   models.CallComplete,
	"busy":        models.CallBusy,
	"no-answer":   models.CallNoAnswer,
	"failed":      models.CallFailed,
	"canceled":    models.CallFailed,
}

// amdMachineValues are the AnsweredBy values indicating a machine or fax
// answered, per the original AMD callback.
var amdMachineValues = map[string]bool{
	"machine_start":       true,
	"machine_end_beep":    true,
	"machine_end_silence": true,
	"machine_end_other":   true,
	"fax":                 true,
}

// quoteRegex requires a currency symbol so plain integers in free text
// ("call 3 businesses") never match.
var quoteRegex = regexp.MustCompile(`[£$]\s*(\d+(?:\.\d{1,2})?)`)

// ExtractQuote returns the first currency-prefixed numeric quote found in
// text, or nil if none is present.
func ExtractQuote(text string) *float64 {
	match := quoteRegex.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	val, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	return &val
}

// Reconciler updates BlitzSession CallRecords from carrier webhooks and
// pushes corresponding events to the Event Bus.
type Reconciler struct {
	store  *session.Store
	bus    *eventbus.Bus
	driver *telephony.Driver
}

// New creates a Reconciler.
func New(store *session.Store, bus *eventbus.Bus, driver *telephony.Driver) *Reconciler {
	return &Reconciler{store: store, bus: bus, driver: driver}
}

// HandleStatus processes a carrier call-status callback. sessionID and
// callID come from the callback URL's query parameters, matching the
// carrier's actual delivery (not the form body).
func (r *Reconciler) HandleStatus(ctx context.Context, sessionID, callID, carrierSID, carrierStatus string) {
	var blitz models.BlitzSession
	ok, err := r.store.Load(ctx, "session", sessionID, &blitz)
	if err != nil {
		logger.Error("reconciler: load session failed", "session_id", sessionID, "error", err)
		return
	}
	if !ok {
		logger.Warn("reconciler: session not found", "session_id", sessionID)
		return
	}

	call := findCall(&blitz, carrierSID, callID)
	if call == nil {
		logger.Warn("reconciler: call record not found", "carrier_sid", carrierSID, "call_id", callID)
		return
	}

	// Once terminal, a CallRecord's status is never overwritten.
	if call.Status.IsTerminal() {
		return
	}

	newStatus, ok := carrierStatusMap[strings.ToLower(carrierStatus)]
	if !ok {
		newStatus = models.CallFailed
	}
	call.Status = newStatus
	if call.CarrierSID == "" {
		call.CarrierSID = carrierSID
	}

	switch newStatus {
	case models.CallRinging:
		now := time.Now()
		if call.StartedAt == nil {
			call.StartedAt = &now
		}
		r.bus.Emit(ctx, sessionID, "call_started", map[string]any{
			"business": call.Business.Name,
			"phone":    call.Business.Phone,
			"status":   "ringing",
		})
	case models.CallConnected:
		r.bus.Emit(ctx, sessionID, "call_connected", map[string]any{
			"business": call.Business.Name,
			"status":   "connected",
		})
	case models.CallBusy, models.CallNoAnswer, models.CallFailed:
		now := time.Now()
		call.EndedAt = &now
		errMsg := "Call failed"
		switch newStatus {
		case models.CallBusy:
			errMsg = "Line busy"
		case models.CallNoAnswer:
			errMsg = "No answer"
		}
		call.Error = &errMsg
		r.bus.Emit(ctx, sessionID, "call_failed", map[string]any{
			"business": call.Business.Name,
			"error":    errMsg,
		})
	case models.CallComplete:
		now := time.Now()
		call.EndedAt = &now
	}

	if err := r.store.Save(ctx, "session", sessionID, blitz, session.DefaultTTL); err != nil {
		logger.Error("reconciler: save session failed", "session_id", sessionID, "error", err)
	}
}

// HandleRecordingComplete attaches the carrier's recording-callback
// transcription to the matching CallRecord, both as a transcript line and
// as the call's result; result is set here, not inferred elsewhere, and no
// quote is extracted on this path.
func (r *Reconciler) HandleRecordingComplete(ctx context.Context, sessionID, callID, carrierSID, transcript, recordingURL string) {
	var blitz models.BlitzSession
	ok, err := r.store.Load(ctx, "session", sessionID, &blitz)
	if err != nil || !ok {
		return
	}

	call := findCall(&blitz, carrierSID, callID)
	if call == nil {
		return
	}

	call.RecordingURL = recordingURL
	if transcript != "" {
		call.Transcript = append(call.Transcript, transcript)
		result := transcript
		call.Result = &result
	}

	if err := r.store.Save(ctx, "session", sessionID, blitz, session.DefaultTTL); err != nil {
		logger.Error("reconciler: save session failed", "session_id", sessionID, "error", err)
	}
}

// HandleAMD processes an answering-machine-detection callback: if a
// machine or fax answered, the live call is hung up immediately and the
// matching CallRecord is marked FAILED rather than letting the script play
// to voicemail. Supplements the distilled spec with the original AMD
// short-circuit.
func (r *Reconciler) HandleAMD(ctx context.Context, sessionID, callID, carrierSID, answeredBy string) {
	if !amdMachineValues[answeredBy] {
		return
	}

	logger.Info("voicemail/machine detected, hanging up", "carrier_sid", carrierSID)
	if err := r.driver.Hangup(ctx, carrierSID); err != nil {
		logger.Error("failed to hang up machine call", "carrier_sid", carrierSID, "error", err)
	}

	if sessionID == "" {
		return
	}

	var blitz models.BlitzSession
	ok, err := r.store.Load(ctx, "session", sessionID, &blitz)
	if err != nil || !ok {
		return
	}

	call := findCall(&blitz, carrierSID, callID)
	if call == nil || call.Status.IsTerminal() {
		return
	}

	call.Status = models.CallFailed
	errMsg := "Voicemail detected"
	call.Error = &errMsg
	now := time.Now()
	call.EndedAt = &now

	if err := r.store.Save(ctx, "session", sessionID, blitz, session.DefaultTTL); err != nil {
		logger.Error("reconciler: save session failed", "session_id", sessionID, "error", err)
	}
}

// findCall does an in-place O(n) scan for n ≤ 3 — deliberately not a
// parent back-pointer, so sessions stay owned values with no cycles.
func findCall(blitz *models.BlitzSession, carrierSID, callID string) *models.CallRecord {
	for i := range blitz.Calls {
		if blitz.Calls[i].CarrierSID == carrierSID || blitz.Calls[i].ID == callID {
			return &blitz.Calls[i]
		}
	}
	return nil
}
