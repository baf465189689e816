package service

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal-relay/internal/domain"
)

// SessionRegistry es la única autoridad sobre qué dirección está conectada y por qué conexión.
type SessionRegistry struct {
	logger  *zap.Logger
	emitter Emitter
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]domain.UserSession
}

type LoginInput struct {
	Address     string
	DisplayName string
	FirstName   string
	LastName    string
	Conn        domain.ConnID
}

// LoginResult describe el efecto de un login. Replaced se rellena cuando
// la dirección ya estaba ligada a otra conexión.
type LoginResult struct {
	Session  domain.UserSession
	Online   []domain.Presence
	Replaced *domain.UserSession
}

func NewSessionRegistry(logger *zap.Logger, emitter Emitter) *SessionRegistry {
	return &SessionRegistry{
		logger:   logger,
		emitter:  emitter,
		now:      time.Now,
		sessions: make(map[string]domain.UserSession),
	}
}

// Login inserta o reemplaza la sesión de la dirección, envía la lista de
// conectados a la nueva conexión y anuncia user-online al resto.
func (r *SessionRegistry) Login(in LoginInput) LoginResult {
	session := domain.UserSession{
		Address:     in.Address,
		Conn:        in.Conn,
		DisplayName: in.DisplayName,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		LoggedInAt:  r.now().UTC(),
	}

	r.mu.Lock()
	var replaced *domain.UserSession
	if prev, ok := r.sessions[in.Address]; ok && prev.Conn != in.Conn {
		replaced = &prev
	}
	r.sessions[in.Address] = session
	online, others := r.snapshotLocked(in.Address)
	r.mu.Unlock()

	if replaced != nil {
		r.logger.Info("session replaced",
			zap.String("address", in.Address),
			zap.String("old_conn", string(replaced.Conn)),
			zap.String("new_conn", string(in.Conn)),
		)
		r.send(replaced.Conn, domain.EventSessionReplaced, domain.SessionReplaced{Address: in.Address})
	}

	r.send(in.Conn, domain.EventOnlineUsers, online)
	r.fanOut(others, domain.EventUserOnline, session.Presence())

	r.logger.Info("user logged in", zap.String("address", in.Address), zap.String("conn", string(in.Conn)))
	return LoginResult{Session: session, Online: online, Replaced: replaced}
}

// Lookup devuelve la sesión activa de la dirección.
func (r *SessionRegistry) Lookup(address string) (domain.UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[address]
	return s, ok
}

// Logout elimina la sesión solo si sigue ligada a conn y anuncia user-offline.
// Devuelve false si no había nada que cerrar.
func (r *SessionRegistry) Logout(address string, conn domain.ConnID) bool {
	r.mu.Lock()
	s, ok := r.sessions[address]
	if !ok || s.Conn != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, address)
	_, others := r.snapshotLocked(address)
	r.mu.Unlock()

	r.fanOut(others, domain.EventUserOffline, address)
	r.logger.Info("user logged out", zap.String("address", address), zap.String("conn", string(conn)))
	return true
}

// Online devuelve todas las direcciones conectadas ordenadas por dirección.
func (r *SessionRegistry) Online() []domain.Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	online, _ := r.snapshotLocked("")
	return online
}

// Count devuelve cuántas direcciones hay registradas.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshotLocked lista presencias y conexiones de todos menos except.
func (r *SessionRegistry) snapshotLocked(except string) ([]domain.Presence, []domain.ConnID) {
	online := make([]domain.Presence, 0, len(r.sessions))
	conns := make([]domain.ConnID, 0, len(r.sessions))
	for addr, s := range r.sessions {
		if addr == except {
			continue
		}
		online = append(online, s.Presence())
		conns = append(conns, s.Conn)
	}
	sort.Slice(online, func(i, j int) bool { return online[i].Address < online[j].Address })
	return online, conns
}

// fanOut envía a cada conexión por separado; un fallo no corta el resto.
func (r *SessionRegistry) fanOut(conns []domain.ConnID, event string, payload any) {
	for _, c := range conns {
		r.send(c, event, payload)
	}
}

func (r *SessionRegistry) send(conn domain.ConnID, event string, payload any) {
	if r.emitter == nil {
		return
	}
	if err := r.emitter.Emit(conn, event, payload); err != nil {
		r.logger.Warn("emit failed",
			zap.String("event", event),
			zap.String("conn", string(conn)),
			zap.Error(err),
		)
	}
}
