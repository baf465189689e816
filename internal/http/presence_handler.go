package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"signal-relay/internal/domain"
)

// OnlineLister es lo que el handler necesita del registro de sesiones.
type OnlineLister interface {
	Online() []domain.Presence
}

// PresenceHandler expone la presencia actual en modo solo lectura.
type PresenceHandler struct {
	sessions OnlineLister
}

func NewPresenceHandler(sessions OnlineLister) *PresenceHandler {
	return &PresenceHandler{sessions: sessions}
}

// ListOnline maneja GET /api/users/online.
func (h *PresenceHandler) ListOnline(c *gin.Context) {
	users := h.sessions.Online()
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// Health maneja GET /healthz.
func (h *PresenceHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
