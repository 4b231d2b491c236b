// Package models defines the session, call, and event types shared across
// the orchestrator: the tagged variants described by the session store, the
// event bus, and every agent workflow.
package models

import "time"

// AgentType is the intent the router classifies a user message into.
type AgentType string

const (
	AgentBlitz      AgentType = "blitz"
	AgentBuild      AgentType = "build"
	AgentBounce     AgentType = "bounce"
	AgentQueue      AgentType = "queue"
	AgentBid        AgentType = "bid"
	AgentInbox      AgentType = "inbox"
	AgentCallFriend AgentType = "call_friend"
	AgentChat       AgentType = "chat"
)

// ValidAgentType reports whether s names one of the known agent tags.
func ValidAgentType(s string) (AgentType, bool) {
	switch AgentType(s) {
	case AgentBlitz, AgentBuild, AgentBounce, AgentQueue, AgentBid, AgentInbox, AgentCallFriend, AgentChat:
		return AgentType(s), true
	default:
		return "", false
	}
}

// RouterParams are the loosely-typed slots the router extracts from a
// message. All fields are optional; absent ones are the zero string.
type RouterParams struct {
	Service   string `json:"service,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Location  string `json:"location,omitempty"`
	Action    string `json:"action,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// RouterResult is the Intent Router's output.
type RouterResult struct {
	Agent      AgentType    `json:"agent"`
	Params     RouterParams `json:"params"`
	Confidence float64      `json:"confidence"`
}

// Business is an immutable directory entry. Only businesses with a phone
// number are admissible into a call set.
type Business struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Address string  `json:"address,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// CallStatus is a CallRecord's lifecycle state.
type CallStatus string

const (
	CallPending   CallStatus = "PENDING"
	CallRinging   CallStatus = "RINGING"
	CallConnected CallStatus = "CONNECTED"
	CallSpeaking  CallStatus = "SPEAKING"
	CallRecording CallStatus = "RECORDING"
	CallComplete  CallStatus = "COMPLETE"
	CallNoAnswer  CallStatus = "NO_ANSWER"
	CallBusy      CallStatus = "BUSY"
	CallFailed    CallStatus = "FAILED"
)

// IsTerminal reports whether the status is one the Reconciler may never
// overwrite.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallComplete, CallNoAnswer, CallBusy, CallFailed:
		return true
	default:
		return false
	}
}

// CallRecord tracks one outbound call placed on behalf of a Blitz session.
// Owned by its parent BlitzSession; mutated in-place by the Telephony
// Driver at creation and by the Reconciler on webhook delivery.
type CallRecord struct {
	ID            string     `json:"id"`
	CarrierSID    string     `json:"carrier_sid,omitempty"`
	Business      Business   `json:"business"`
	Status        CallStatus `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	DurationS     *float64   `json:"duration_s,omitempty"`
	Transcript    []string   `json:"transcript,omitempty"`
	Result        *string    `json:"result,omitempty"`
	Error         *string    `json:"error,omitempty"`
	RecordingURL  string     `json:"recording_url,omitempty"`
}

// BlitzStatus is a BlitzSession's coarse lifecycle state.
type BlitzStatus string

const (
	BlitzSearching BlitzStatus = "SEARCHING"
	BlitzCalling   BlitzStatus = "CALLING"
	BlitzComplete  BlitzStatus = "COMPLETE"
	BlitzError     BlitzStatus = "ERROR"
)

// BlitzSession is the fan-out-calls session variant.
type BlitzSession struct {
	ID           string       `json:"id"`
	UserMessage  string       `json:"user_message"`
	ParsedParams RouterParams `json:"parsed_params"`
	Status       BlitzStatus  `json:"status"`
	Businesses   []Business   `json:"businesses"`
	Calls        []CallRecord `json:"calls"`
	Summary      string       `json:"summary,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// QueuePhase is a QueueSession's state, ordered for the phase guard.
type QueuePhase string

const (
	QueueInitiating     QueuePhase = "INITIATING"
	QueueRinging        QueuePhase = "RINGING"
	QueueIVR            QueuePhase = "IVR"
	QueueHold           QueuePhase = "HOLD"
	QueueHumanDetected  QueuePhase = "HUMAN_DETECTED"
	QueueCompleted      QueuePhase = "COMPLETED"
	QueueFailed         QueuePhase = "FAILED"
	QueueCancelled      QueuePhase = "CANCELLED"
)

// PhaseOrder is the total order enforced by the Queue agent's phase guard.
// Higher order = more advanced; a write whose expected phase order is below
// the currently stored phase's order must be skipped.
var PhaseOrder = map[QueuePhase]int{
	QueueInitiating:    0,
	QueueRinging:       1,
	QueueIVR:           2,
	QueueHold:          3,
	QueueHumanDetected: 4,
	QueueCompleted:     5,
	QueueFailed:        5,
	QueueCancelled:     5,
}

// IVRStep records one turn of IVR navigation.
type IVRStep struct {
	Heard   string    `json:"heard"`
	Pressed string    `json:"pressed,omitempty"`
	At      time.Time `json:"at"`
}

// QueueSession is the hold-and-wait session variant.
type QueueSession struct {
	ID               string     `json:"id"`
	Phone            string     `json:"phone"`
	BusinessName     string     `json:"business_name"`
	Reason           string     `json:"reason,omitempty"`
	Phase            QueuePhase `json:"phase"`
	CarrierSID       string     `json:"carrier_sid,omitempty"`
	IVRSteps         []IVRStep  `json:"ivr_steps,omitempty"`
	HoldStartedAt    *time.Time `json:"hold_started_at,omitempty"`
	HoldElapsedS     float64    `json:"hold_elapsed_s"`
	HumanDetected    bool       `json:"human_detected"`
	CallbackNumber   string     `json:"callback_number,omitempty"`
	MaxHoldMinutes   int        `json:"max_hold_minutes"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CallFriendPhase is a CallFriendSession's state.
type CallFriendPhase string

const (
	CallFriendInitiating CallFriendPhase = "INITIATING"
	CallFriendRinging    CallFriendPhase = "RINGING"
	CallFriendConnected  CallFriendPhase = "CONNECTED"
	CallFriendComplete   CallFriendPhase = "COMPLETE"
	CallFriendFailed     CallFriendPhase = "FAILED"
	CallFriendNoAnswer   CallFriendPhase = "NO_ANSWER"
)

// TranscriptRole identifies the speaker of a transcript line.
type TranscriptRole string

const (
	RoleHuman  TranscriptRole = "human"
	RoleAI     TranscriptRole = "ai"
	RoleSystem TranscriptRole = "system"
	RoleError  TranscriptRole = "error"
)

// TranscriptLine is one turn captured from a Media Bridge session.
type TranscriptLine struct {
	Role      TranscriptRole `json:"role"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
}

// CallFriendSession is the live-bridge-call session variant.
type CallFriendSession struct {
	ID         string            `json:"id"`
	FriendName string            `json:"friend_name"`
	Phone      string            `json:"phone"`
	Question   string            `json:"question"`
	Phase      CallFriendPhase   `json:"phase"`
	CarrierSID string            `json:"carrier_sid,omitempty"`
	Transcript []TranscriptLine  `json:"transcript,omitempty"`
	Response   string            `json:"response,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// BuildSession is the website-builder session variant.
type BuildSession struct {
	ID        string            `json:"id"`
	Description string          `json:"description"`
	Files     map[string]string `json:"files,omitempty"`
	Status    string            `json:"status"`
	PreviewID string            `json:"preview_id,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Features  []string          `json:"features,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Event is the envelope pushed through the Event Bus and rendered by the
// SSE Gateway.
type Event struct {
	Type      string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// TerminalSets maps each agent kind to the event types that close its SSE
// stream, per spec §4.3.
var TerminalSets = map[AgentType]map[string]bool{
	AgentBlitz: {"session_complete": true, "error": true},
	AgentQueue: {"queue_human_detected": true, "queue_failed": true},
	AgentCallFriend: {"session_complete": true, "error": true},
	AgentBuild: {"build_complete": true, "build_error": true, "build_clarification": true},
	AgentInbox: {"inbox_complete": true, "inbox_error": true, "inbox_auth_required": true},
}

// IsTerminalEvent reports whether eventType closes the SSE stream for kind.
func IsTerminalEvent(kind AgentType, eventType string) bool {
	set, ok := TerminalSets[kind]
	if !ok {
		return false
	}
	return set[eventType]
}
