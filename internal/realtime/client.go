package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signal-relay/internal/domain"
)

// Client es una conexión websocket con su ranura de identidad.
type Client struct {
	id  domain.ConnID
	hub *Hub
	ws  *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	identity string
}

func newClient(h *Hub, ws *websocket.Conn) *Client {
	return &Client{
		id:   newConnID(),
		hub:  h,
		ws:   ws,
		send: make(chan []byte, h.opts.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() domain.ConnID { return c.id }

func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Client) SetIdentity(address string) {
	c.mu.Lock()
	c.identity = address
	c.mu.Unlock()
}

func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnNotFound
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// readPump lee tramas hasta que la conexión falla o deja de responder a los pings.
func (c *Client) readPump(ctx context.Context, handler Handler) {
	opts := c.hub.opts
	logger := c.hub.logger

	c.ws.SetReadLimit(opts.MaxMessageBytes)
	deadline := opts.PingInterval + opts.PingTimeout
	_ = c.ws.SetReadDeadline(time.Now().Add(deadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("websocket read failed", zap.String("conn", string(c.id)), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(deadline))

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			logger.Warn("invalid frame", zap.String("conn", string(c.id)), zap.Error(err))
			if frame, ferr := encodeFrame(domain.EventError, domain.ErrorEvent{Code: domain.ErrorCodeBadRequest}); ferr == nil {
				_ = c.enqueue(frame)
			}
			continue
		}
		handler.Handle(ctx, c, env.Event, env.Data)
	}
}

// writePump es el único escritor del websocket: tramas encoladas y pings.
func (c *Client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.logger.Debug("websocket write failed", zap.String("conn", string(c.id)), zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
