package service

import "signal-relay/internal/domain"

// Emitter entrega un evento a una conexión concreta sin esperar a que se escriba.
type Emitter interface {
	Emit(conn domain.ConnID, event string, payload any) error
}

// Directory resuelve direcciones registradas; lo implementa SessionRegistry.
type Directory interface {
	Lookup(address string) (domain.UserSession, bool)
}
