package service

import (
	"errors"
	"sync"

	"signal-relay/internal/domain"
)

var ErrFriendNotFound = errors.New("friend not found")

// FriendService mantiene la lista dirigida de contactos de cada dirección.
// Las listas se guardan por dirección, fuera de la sesión, por lo que
// sobreviven a un re-login salvo que se llame a Reset.
type FriendService struct {
	directory Directory

	mu      sync.RWMutex
	friends map[string][]string
}

func NewFriendService(directory Directory) *FriendService {
	return &FriendService{
		directory: directory,
		friends:   make(map[string][]string),
	}
}

// AddFriend agrega friend a la lista de owner si está conectado y no es owner.
// Es idempotente: repetir la operación no duplica la entrada.
func (s *FriendService) AddFriend(owner, friend string) (domain.Presence, error) {
	if friend == "" || friend == owner {
		return domain.Presence{}, ErrFriendNotFound
	}
	session, ok := s.directory.Lookup(friend)
	if !ok {
		return domain.Presence{}, ErrFriendNotFound
	}

	s.mu.Lock()
	list := s.friends[owner]
	found := false
	for _, f := range list {
		if f == friend {
			found = true
			break
		}
	}
	if !found {
		s.friends[owner] = append(list, friend)
	}
	s.mu.Unlock()

	return session.Presence(), nil
}

// ListFriends resuelve la presencia actual de cada contacto en orden de alta.
func (s *FriendService) ListFriends(owner string) []domain.Presence {
	s.mu.RLock()
	list := append([]string(nil), s.friends[owner]...)
	s.mu.RUnlock()

	out := make([]domain.Presence, 0, len(list))
	for _, addr := range list {
		if session, ok := s.directory.Lookup(addr); ok {
			out = append(out, session.Presence())
			continue
		}
		out = append(out, domain.Presence{Address: addr, DisplayName: addr, Online: false})
	}
	return out
}

// Reset vacía la lista de contactos de owner.
func (s *FriendService) Reset(owner string) {
	s.mu.Lock()
	delete(s.friends, owner)
	s.mu.Unlock()
}
