package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/session"
)

// carrierFrame is one message exchanged over the carrier's media WebSocket.
// The carrier only ever sends "start" (once, with the stream id), "media"
// (repeatedly, with a base64 mu-law payload), and "stop".
type carrierFrame struct {
	Event string `json:"event"`
	Start struct {
		StreamSID string `json:"streamSid"`
	} `json:"start,omitempty"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
}

// carrierOutFrame is a "media" frame sent back to the carrier, stamped with
// the stream id the carrier handed us in its "start" frame.
type carrierOutFrame struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// aiMessage is one JSON message exchanged with the conversational AI leg.
// Outbound, only Type and AudioChunk are set ("user_audio_chunk"). Inbound,
// Type selects which of the remaining fields apply: "audio" carries more
// agent speech, "user_transcript"/"agent_response" carry transcript text,
// "conversation_end" and "error" carry no payload beyond Type/Message.
type aiMessage struct {
	Type       string `json:"type"`
	AudioChunk string `json:"audio_chunk,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	IsFinal    bool   `json:"is_final,omitempty"`
	Response   string `json:"response,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Endpoint is one leg of a bridge: a live WebSocket connection plus the
// session it belongs to.
type Endpoint struct {
	SessionID string
	Kind      models.AgentType
	Conn      *websocket.Conn
}

// Bridge relays audio between a carrier leg and an AI-voice leg for the
// lifetime of one live call. Two goroutines run concurrently, each reading
// from one leg and writing the audio payload unchanged (no transcoding) to
// the other, counting packets and
// bytes the same way the carrier-audio relay does for its two directions.
type Bridge struct {
	ID      string
	Carrier *Endpoint
	AI      *Endpoint

	store *session.Store
	bus   *eventbus.Bus

	ctx    context.Context
	cancel context.CancelFunc
	active atomic.Bool
	done   sync.Once

	streamSID atomic.Value // string

	packetsCarrierToAI atomic.Int64
	packetsAIToCarrier atomic.Int64
	bytesCarrierToAI   atomic.Int64
	bytesAIToCarrier   atomic.Int64
}

// Stats reports a bridge's relay counters.
type Stats struct {
	PacketsCarrierToAI int64
	PacketsAIToCarrier int64
	BytesCarrierToAI   int64
	BytesAIToCarrier   int64
}

// Manager tracks live bridges, one per call, so webhook and hangup handlers
// can look a bridge up by call ID and tear it down.
type Manager struct {
	bridges sync.Map // callID -> *Bridge

	store *session.Store
	bus   *eventbus.Bus
}

// NewManager creates an empty bridge registry. store and bus are handed to
// every bridge it creates so the AI leg can persist transcript lines and
// completion back to the Session Store and emit them on the Event Bus.
func NewManager(store *session.Store, bus *eventbus.Bus) *Manager {
	return &Manager{store: store, bus: bus}
}

// Create starts relaying between a carrier leg and an AI leg under callID,
// returning the running Bridge.
func (m *Manager) Create(callID string, carrier, ai *Endpoint) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		ID:      callID,
		Carrier: carrier,
		AI:      ai,
		store:   m.store,
		bus:     m.bus,
		ctx:     ctx,
		cancel:  cancel,
	}
	b.active.Store(true)
	b.streamSID.Store("")

	go b.relayCarrierToAI()
	go b.relayAIToCarrier()

	m.bridges.Store(callID, b)
	logger.Info("media bridge created", "call_id", callID)
	return b
}

// Get returns the bridge for callID, if one is active.
func (m *Manager) Get(callID string) (*Bridge, bool) {
	v, ok := m.bridges.Load(callID)
	if !ok {
		return nil, false
	}
	return v.(*Bridge), true
}

// Destroy tears down the bridge for callID.
func (m *Manager) Destroy(callID string) {
	v, ok := m.bridges.LoadAndDelete(callID)
	if !ok {
		return
	}
	v.(*Bridge).finish("bridge destroyed")
}

// relayCarrierToAI reads frames from the carrier WebSocket. "start" frames
// capture the stream id; "media" frames have their base64 mu-law payload
// forwarded unchanged to the AI leg as a user_audio_chunk message; a "stop"
// frame ends the call.
func (b *Bridge) relayCarrierToAI() {
	defer b.finish("carrier leg closed")

	for b.active.Load() {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		_, raw, err := b.Carrier.Conn.ReadMessage()
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			logger.Debug("media bridge: carrier read error", "bridge_id", b.ID, "error", err)
			return
		}

		var frame carrierFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		switch frame.Event {
		case "start":
			b.streamSID.Store(frame.Start.StreamSID)
			b.recordTranscript(models.RoleSystem, "Call connected, AI is speaking...")

		case "media":
			mulaw, err := base64.StdEncoding.DecodeString(frame.Media.Payload)
			if err != nil {
				continue
			}
			out := aiMessage{Type: "user_audio_chunk", AudioChunk: base64.StdEncoding.EncodeToString(mulaw)}
			encoded, err := json.Marshal(out)
			if err != nil {
				continue
			}
			if err := b.AI.Conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
				logger.Debug("media bridge: AI write error", "bridge_id", b.ID, "error", err)
				continue
			}
			b.packetsCarrierToAI.Add(1)
			b.bytesCarrierToAI.Add(int64(len(encoded)))

		case "stop":
			return
		}
	}
}

// relayAIToCarrier reads JSON messages from the AI leg. "audio" messages are
// forwarded to the carrier as a stream-id-stamped media frame;
// "user_transcript"/"agent_response" become per-session transcript events;
// "conversation_end" and "error" end the call.
func (b *Bridge) relayAIToCarrier() {
	defer b.finish("AI leg closed")

	for b.active.Load() {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		_, raw, err := b.AI.Conn.ReadMessage()
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			logger.Debug("media bridge: AI read error", "bridge_id", b.ID, "error", err)
			return
		}

		var msg aiMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "audio":
			mulaw, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				continue
			}
			out := carrierOutFrame{Event: "media", StreamSID: b.streamSID.Load().(string)}
			out.Media.Payload = base64.StdEncoding.EncodeToString(mulaw)
			encoded, err := json.Marshal(out)
			if err != nil {
				continue
			}
			if err := b.Carrier.Conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
				logger.Debug("media bridge: carrier write error", "bridge_id", b.ID, "error", err)
				continue
			}
			b.packetsAIToCarrier.Add(1)
			b.bytesAIToCarrier.Add(int64(len(encoded)))

		case "user_transcript":
			if msg.IsFinal && strings.TrimSpace(msg.Transcript) != "" {
				b.recordTranscript(models.RoleHuman, msg.Transcript)
			}

		case "agent_response":
			if strings.TrimSpace(msg.Response) != "" {
				b.recordTranscript(models.RoleAI, msg.Response)
			}

		case "conversation_end":
			return

		case "error":
			message := msg.Message
			if message == "" {
				message = "unknown AI voice error"
			}
			b.recordTranscript(models.RoleError, message)
			return
		}
	}
}

// recordTranscript emits a transcript event on the Event Bus and, for
// CallFriend bridges, appends the line to the session's stored transcript so
// the calling agent's completion summary has real content to work with.
func (b *Bridge) recordTranscript(role models.TranscriptRole, text string) {
	if b.bus != nil {
		b.bus.Emit(b.ctx, b.Carrier.SessionID, "transcript", map[string]any{
			"speaker": string(role),
			"text":    text,
		})
	}
	b.appendCallFriendTranscript(role, text)
}

// appendCallFriendTranscript does a load-modify-save of the CallFriendSession
// transcript. Only call_friend bridges own a CallFriendSession in the
// Session Store; any other kind is left untouched.
func (b *Bridge) appendCallFriendTranscript(role models.TranscriptRole, text string) {
	if b.store == nil || b.Carrier.Kind != models.AgentCallFriend {
		return
	}

	var sess models.CallFriendSession
	ok, err := b.store.Load(b.ctx, "session", b.Carrier.SessionID, &sess)
	if err != nil || !ok {
		return
	}

	sess.Transcript = append(sess.Transcript, models.TranscriptLine{Role: role, Text: text, Timestamp: time.Now()})
	if role == models.RoleHuman {
		sess.Response = text
	}
	if err := b.store.Save(b.ctx, "session", b.Carrier.SessionID, sess, session.DefaultTTL); err != nil {
		logger.Warn("media bridge: save transcript failed", "bridge_id", b.ID, "error", err)
	}
}

// finish tears the bridge down exactly once: it emits a terminal transcript
// line, marks a call_friend session's phase COMPLETE (unless it already
// reached a terminal phase some other way), cancels the relay goroutines,
// and closes both legs. Safe to call from either relay goroutine or from
// Manager.Destroy.
func (b *Bridge) finish(reason string) {
	b.done.Do(func() {
		b.active.Store(false)
		b.recordTranscript(models.RoleSystem, "Call ended")
		b.completeCallFriendSession()
		b.cancel()
		_ = b.Carrier.Conn.Close()
		_ = b.AI.Conn.Close()

		stats := b.GetStats()
		logger.Info("media bridge finished", "call_id", b.ID, "reason", reason,
			"packets_carrier_to_ai", stats.PacketsCarrierToAI,
			"packets_ai_to_carrier", stats.PacketsAIToCarrier,
			"bytes_carrier_to_ai", stats.BytesCarrierToAI,
			"bytes_ai_to_carrier", stats.BytesAIToCarrier,
		)
	})
}

func (b *Bridge) completeCallFriendSession() {
	if b.store == nil || b.Carrier.Kind != models.AgentCallFriend {
		return
	}

	var sess models.CallFriendSession
	ok, err := b.store.Load(b.ctx, "session", b.Carrier.SessionID, &sess)
	if err != nil || !ok {
		return
	}
	switch sess.Phase {
	case models.CallFriendComplete, models.CallFriendFailed, models.CallFriendNoAnswer:
		return
	}
	sess.Phase = models.CallFriendComplete
	if err := b.store.Save(b.ctx, "session", b.Carrier.SessionID, sess, session.DefaultTTL); err != nil {
		logger.Warn("media bridge: save completion failed", "bridge_id", b.ID, "error", err)
	}
}

// GetStats returns the bridge's current relay counters.
func (b *Bridge) GetStats() Stats {
	return Stats{
		PacketsCarrierToAI: b.packetsCarrierToAI.Load(),
		PacketsAIToCarrier: b.packetsAIToCarrier.Load(),
		BytesCarrierToAI:   b.bytesCarrierToAI.Load(),
		BytesAIToCarrier:   b.bytesAIToCarrier.Load(),
	}
}

// Shutdown tears down every active bridge, e.g. on process exit.
func (m *Manager) Shutdown() {
	m.bridges.Range(func(key, _ any) bool {
		m.Destroy(key.(string))
		return true
	})
}
