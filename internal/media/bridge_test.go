package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DeepNandre/friendlyy/internal/eventbus"
	"github.com/DeepNandre/friendlyy/internal/models"
	"github.com/DeepNandre/friendlyy/internal/session"
)

// dialPair spins up a short-lived echo-upgrade server and returns a
// connected client/server WebSocket pair, so Bridge tests exercise real
// *websocket.Conn values rather than a hand-rolled fake.
func dialPair(t *testing.T) (client, server *websocket.Conn, cleanup func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverConnCh := make(chan *websocket.Conn, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConnCh <- conn
	}))

	wsURL := "ws" + ts.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	serverConn := <-serverConnCh
	return clientConn, serverConn, func() {
		clientConn.Close()
		serverConn.Close()
		ts.Close()
	}
}

func TestManagerCreateGetDestroy(t *testing.T) {
	carrierClient, carrierServer, cleanupCarrier := dialPair(t)
	defer cleanupCarrier()
	aiClient, aiServer, cleanupAI := dialPair(t)
	defer cleanupAI()
	_ = carrierClient
	_ = aiClient

	m := NewManager(nil, nil)
	b := m.Create("call-1", &Endpoint{SessionID: "sess-1", Conn: carrierServer}, &Endpoint{SessionID: "sess-1", Conn: aiServer})
	if b == nil {
		t.Fatal("Create() returned nil bridge")
	}

	got, ok := m.Get("call-1")
	if !ok || got != b {
		t.Fatalf("Get(%q) = %v, %v; want the created bridge", "call-1", got, ok)
	}

	if _, ok := m.Get("nonexistent"); ok {
		t.Error("Get() on unknown call ID should report not found")
	}

	m.Destroy("call-1")
	if _, ok := m.Get("call-1"); ok {
		t.Error("Get() after Destroy() should report not found")
	}
}

func TestManagerShutdownDestroysAllBridges(t *testing.T) {
	m := NewManager(nil, nil)
	for _, id := range []string{"call-a", "call-b"} {
		c1, s1, cleanup1 := dialPair(t)
		c2, s2, cleanup2 := dialPair(t)
		defer cleanup1()
		defer cleanup2()
		_ = c1
		_ = c2
		m.Create(id, &Endpoint{SessionID: id, Conn: s1}, &Endpoint{SessionID: id, Conn: s2})
	}

	time.Sleep(10 * time.Millisecond) // let relay goroutines start
	m.Shutdown()

	if _, ok := m.Get("call-a"); ok {
		t.Error("call-a should be gone after Shutdown()")
	}
	if _, ok := m.Get("call-b"); ok {
		t.Error("call-b should be gone after Shutdown()")
	}
}

func TestBridgeRelaysCarrierMediaAsUserAudioChunk(t *testing.T) {
	carrierClient, carrierServer, cleanupCarrier := dialPair(t)
	defer cleanupCarrier()
	aiClient, aiServer, cleanupAI := dialPair(t)
	defer cleanupAI()

	m := NewManager(nil, nil)
	m.Create("call-1", &Endpoint{SessionID: "sess-1", Conn: carrierServer}, &Endpoint{SessionID: "sess-1", Conn: aiServer})
	defer m.Destroy("call-1")

	mulaw := []byte{0xff, 0x00, 0x7e}
	start, _ := json.Marshal(map[string]any{"event": "start", "start": map[string]string{"streamSid": "MZ123"}})
	media, _ := json.Marshal(map[string]any{"event": "media", "media": map[string]string{"payload": base64.StdEncoding.EncodeToString(mulaw)}})
	if err := carrierClient.WriteMessage(websocket.TextMessage, start); err != nil {
		t.Fatalf("write start frame: %v", err)
	}
	if err := carrierClient.WriteMessage(websocket.TextMessage, media); err != nil {
		t.Fatalf("write media frame: %v", err)
	}

	aiClient.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := aiClient.ReadMessage()
	if err != nil {
		t.Fatalf("AI leg did not receive a message: %v", err)
	}

	var msg aiMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal AI message: %v", err)
	}
	if msg.Type != "user_audio_chunk" {
		t.Errorf("AI message type = %q, want %q", msg.Type, "user_audio_chunk")
	}
	decoded, err := base64.StdEncoding.DecodeString(msg.AudioChunk)
	if err != nil || string(decoded) != string(mulaw) {
		t.Errorf("AI audio_chunk decoded = %q, want %q", decoded, mulaw)
	}
}

func TestBridgeRelaysAIAudioStampedWithStreamSID(t *testing.T) {
	carrierClient, carrierServer, cleanupCarrier := dialPair(t)
	defer cleanupCarrier()
	aiClient, aiServer, cleanupAI := dialPair(t)
	defer cleanupAI()

	m := NewManager(nil, nil)
	b := m.Create("call-1", &Endpoint{SessionID: "sess-1", Conn: carrierServer}, &Endpoint{SessionID: "sess-1", Conn: aiServer})
	defer m.Destroy("call-1")
	b.streamSID.Store("MZ456")

	mulaw := []byte{0x01, 0x02}
	out, _ := json.Marshal(aiMessage{Type: "audio", Audio: base64.StdEncoding.EncodeToString(mulaw)})
	if err := aiClient.WriteMessage(websocket.TextMessage, out); err != nil {
		t.Fatalf("write AI audio message: %v", err)
	}

	carrierClient.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := carrierClient.ReadMessage()
	if err != nil {
		t.Fatalf("carrier leg did not receive a message: %v", err)
	}

	var frame carrierOutFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal carrier frame: %v", err)
	}
	if frame.Event != "media" || frame.StreamSID != "MZ456" {
		t.Errorf("carrier frame = %+v, want event=media streamSid=MZ456", frame)
	}
}

func TestBridgeEmitsTranscriptAndPersistsCompletionOnConversationEnd(t *testing.T) {
	_, carrierServer, cleanupCarrier := dialPair(t)
	defer cleanupCarrier()
	aiClient, aiServer, cleanupAI := dialPair(t)
	defer cleanupAI()

	store := session.New("")
	bus := eventbus.New(nil)
	ctx := context.Background()

	sess := models.CallFriendSession{ID: "sess-1", FriendName: "Sam", Phase: models.CallFriendConnected}
	if err := store.Save(ctx, "session", "sess-1", sess, session.DefaultTTL); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	m := NewManager(store, bus)
	m.Create("call-1",
		&Endpoint{SessionID: "sess-1", Kind: models.AgentCallFriend, Conn: carrierServer},
		&Endpoint{SessionID: "sess-1", Kind: models.AgentCallFriend, Conn: aiServer},
	)

	response, _ := json.Marshal(aiMessage{Type: "agent_response", Response: "Hello there"})
	end, _ := json.Marshal(aiMessage{Type: "conversation_end"})
	if err := aiClient.WriteMessage(websocket.TextMessage, response); err != nil {
		t.Fatalf("write agent_response: %v", err)
	}
	if err := aiClient.WriteMessage(websocket.TextMessage, end); err != nil {
		t.Fatalf("write conversation_end: %v", err)
	}

	var saw []string
	for i := 0; i < 2; i++ {
		event, ok, err := bus.Pop(ctx, "sess-1", 2*time.Second)
		if err != nil || !ok {
			t.Fatalf("pop transcript event %d: ok=%v err=%v", i, ok, err)
		}
		if event.Type == "transcript" {
			if data, ok := event.Data.(map[string]any); ok {
				if text, ok := data["text"].(string); ok {
					saw = append(saw, text)
				}
			}
		}
	}
	if len(saw) != 2 || saw[0] != "Hello there" || saw[1] != "Call ended" {
		t.Errorf("transcript events = %v, want [Hello there, Call ended]", saw)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var current models.CallFriendSession
		if ok, err := store.Load(ctx, "session", "sess-1", &current); err == nil && ok && current.Phase == models.CallFriendComplete {
			if len(current.Transcript) != 2 {
				t.Errorf("stored transcript length = %d, want 2", len(current.Transcript))
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session phase was never marked COMPLETE")
}
