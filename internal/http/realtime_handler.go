package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signal-relay/internal/realtime"
)

// RealtimeHandler promueve GET /ws a websocket y entrega la conexión al hub.
type RealtimeHandler struct {
	logger   *zap.Logger
	hub      *realtime.Hub
	handler  realtime.Handler
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(logger *zap.Logger, hub *realtime.Hub, handler realtime.Handler, allowedOrigins []string) *RealtimeHandler {
	return &RealtimeHandler{
		logger:  logger,
		hub:     hub,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(allowedOrigins, origin)
			},
		},
	}
}

// Serve maneja GET /ws.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade ya respondió al cliente.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if err := h.hub.Serve(c.Request.Context(), ws, h.handler); err != nil {
		h.logger.Warn("websocket serve failed", zap.Error(err))
	}
}
