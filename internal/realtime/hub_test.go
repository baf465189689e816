package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signal-relay/internal/domain"
)

// echoHandler responde cada evento con "echo" y guarda las desconexiones.
type echoHandler struct {
	hub *Hub

	mu           sync.Mutex
	disconnected []string
	done         chan struct{}
}

func (h *echoHandler) Handle(_ context.Context, conn domain.Conn, event string, data json.RawMessage) {
	if event == "whoami" {
		conn.SetIdentity(string(conn.ID()))
	}
	_ = h.hub.Emit(conn.ID(), "echo", map[string]any{"event": event, "data": data, "identity": conn.Identity()})
}

func (h *echoHandler) Disconnect(conn domain.Conn) {
	h.mu.Lock()
	h.disconnected = append(h.disconnected, conn.Identity())
	h.mu.Unlock()
	close(h.done)
}

func startHub(t *testing.T) (*Hub, *echoHandler, *websocket.Conn) {
	t.Helper()
	hub := NewHub(zap.NewNop(), Options{PingInterval: time.Second, PingTimeout: time.Second})
	handler := &echoHandler{hub: hub, done: make(chan struct{})}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Serve(r.Context(), ws, handler)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return hub, handler, conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func TestHub_RoundTripAndIdentity(t *testing.T) {
	_, _, conn := startHub(t)

	if err := conn.WriteJSON(map[string]any{"event": "whoami", "data": map[string]string{"x": "y"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := readFrame(t, conn)
	if f.Event != "echo" {
		t.Fatalf("expected echo, got %q", f.Event)
	}
	var body struct {
		Event    string          `json:"event"`
		Data     json.RawMessage `json:"data"`
		Identity string          `json:"identity"`
	}
	if err := json.Unmarshal(f.Data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Event != "whoami" || string(body.Data) != `{"x":"y"}` || body.Identity == "" {
		t.Fatalf("unexpected echo body: %+v", body)
	}
}

func TestHub_InvalidFrameGetsError(t *testing.T) {
	_, _, conn := startHub(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := readFrame(t, conn)
	if f.Event != domain.EventError {
		t.Fatalf("expected error event, got %q", f.Event)
	}
	var e domain.ErrorEvent
	_ = json.Unmarshal(f.Data, &e)
	if e.Code != domain.ErrorCodeBadRequest {
		t.Fatalf("expected bad-request, got %+v", e)
	}
}

func TestHub_DisconnectCallback(t *testing.T) {
	hub, handler, conn := startHub(t)

	_ = conn.WriteJSON(map[string]any{"event": "whoami"})
	readFrame(t, conn)
	if hub.Count() != 1 {
		t.Fatalf("expected one connection, got %d", hub.Count())
	}

	conn.Close()
	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Disconnect to be called")
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.disconnected) != 1 || handler.disconnected[0] == "" {
		t.Fatalf("expected identity visible on disconnect, got %+v", handler.disconnected)
	}
}

func TestHub_EmitUnknownConnection(t *testing.T) {
	hub := NewHub(zap.NewNop(), Options{})
	if err := hub.Emit("missing", "x", nil); !errors.Is(err, ErrConnNotFound) {
		t.Fatalf("expected ErrConnNotFound, got %v", err)
	}
}

func TestClientEnqueue_BufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop(), Options{SendBuffer: 1})
	c := newClient(hub, nil)

	if err := c.enqueue([]byte("1")); err != nil {
		t.Fatalf("expected first enqueue to pass, got %v", err)
	}
	if err := c.enqueue([]byte("2")); !errors.Is(err, ErrSendBufferFull) {
		t.Fatalf("expected ErrSendBufferFull, got %v", err)
	}
}

func TestClientIdentitySlot(t *testing.T) {
	c := newClient(NewHub(zap.NewNop(), Options{}), nil)
	if c.Identity() != "" {
		t.Fatalf("expected empty identity before login")
	}
	c.SetIdentity("alice")
	if c.Identity() != "alice" || c.ID() == "" {
		t.Fatalf("unexpected client state: id=%q identity=%q", c.ID(), c.Identity())
	}
}
