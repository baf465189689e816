// Package realtime es el transporte websocket: mantiene las conexiones,
// les asigna una ranura de identidad y entrega eventos por conexión.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signal-relay/internal/domain"
)

var (
	ErrConnNotFound   = errors.New("connection not found")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrHubClosed      = errors.New("hub closed")
)

// Handler consume los eventos de las conexiones; lo implementa service.Dispatcher.
type Handler interface {
	Handle(ctx context.Context, conn domain.Conn, event string, data json.RawMessage)
	Disconnect(conn domain.Conn)
}

type Options struct {
	PingInterval    time.Duration
	PingTimeout     time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 10 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
	return o
}

// Hub es el conjunto de conexiones vivas indexado por ConnID.
type Hub struct {
	logger *zap.Logger
	opts   Options

	mu      sync.RWMutex
	clients map[domain.ConnID]*Client
	closed  bool
}

func NewHub(logger *zap.Logger, opts Options) *Hub {
	return &Hub{
		logger:  logger,
		opts:    opts.withDefaults(),
		clients: make(map[domain.ConnID]*Client),
	}
}

// Emit encola el evento para la conexión. No bloquea: si el buffer del
// cliente está lleno el evento se descarta y se devuelve ErrSendBufferFull.
func (h *Hub) Emit(conn domain.ConnID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnNotFound, conn)
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// Serve registra ws como cliente y bloquea hasta que la conexión se cierra.
// Al salir avisa a handler.Disconnect.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn, handler Handler) error {
	c := newClient(h, ws)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return ErrHubClosed
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Info("connection opened", zap.String("conn", string(c.id)), zap.String("remote", ws.RemoteAddr().String()))

	go c.writePump()
	c.readPump(ctx, handler)

	h.remove(c.id)
	handler.Disconnect(c)
	c.close()
	h.logger.Info("connection closed", zap.String("conn", string(c.id)), zap.String("address", c.Identity()))
	return nil
}

// Count devuelve cuántas conexiones siguen abiertas.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close cierra todas las conexiones; Serve deja de aceptar nuevas.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
	}
}

func (h *Hub) remove(id domain.ConnID) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

func newConnID() domain.ConnID {
	return domain.ConnID(uuid.NewString())
}

func encodeFrame(event string, payload any) ([]byte, error) {
	env := struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: payload}
	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return frame, nil
}
