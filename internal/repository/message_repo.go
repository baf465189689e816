package repository

import (
	"context"
	"sync"

	"signal-relay/internal/domain"
)

// MessageRepository guarda el historial de cada conversación, identificada por su clave canónica.
type MessageRepository interface {
	Append(ctx context.Context, key string, message domain.Message) error
	ListByConversation(ctx context.Context, key string) ([]domain.Message, error)
	Last(ctx context.Context, key string) (domain.Message, bool, error)
}

// MemoryMessageRepository es un log append-only en memoria; se pierde al reiniciar.
type MemoryMessageRepository struct {
	mu   sync.RWMutex
	logs map[string][]domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{logs: make(map[string][]domain.Message)}
}

func (r *MemoryMessageRepository) Append(ctx context.Context, key string, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.logs[key] = append(r.logs[key], message)
	r.mu.Unlock()
	return nil
}

func (r *MemoryMessageRepository) ListByConversation(ctx context.Context, key string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	log := r.logs[key]
	out := make([]domain.Message, len(log))
	copy(out, log)
	return out, nil
}

func (r *MemoryMessageRepository) Last(ctx context.Context, key string) (domain.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	log := r.logs[key]
	if len(log) == 0 {
		return domain.Message{}, false, nil
	}
	return log[len(log)-1], true, nil
}
