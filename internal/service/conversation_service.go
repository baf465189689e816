package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"signal-relay/internal/domain"
	"signal-relay/internal/repository"
)

// TimestampLayout es ISO-8601 con milisegundos en UTC, igual que Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	ErrConversationNotConfigured = errors.New("conversation service not configured")
	ErrMessageInvalidInput       = errors.New("message invalid input")
	ErrMessageTooLong            = errors.New("message too long")
)

// ConversationService guarda y lee el historial entre pares de direcciones.
type ConversationService struct {
	repo   repository.MessageRepository
	maxLen int
	now    func() time.Time

	// serializa leer el último timestamp y anexar.
	mu sync.Mutex
}

// NewConversationService crea el servicio; maxLen <= 0 desactiva el límite de longitud.
func NewConversationService(repo repository.MessageRepository, maxLen int) *ConversationService {
	return &ConversationService{repo: repo, maxLen: maxLen, now: time.Now}
}

// ConversationKey devuelve la clave canónica del par: ConversationKey(a, b) == ConversationKey(b, a).
// La primera dirección va prefijada con su longitud, así dos pares distintos
// nunca comparten clave aunque las direcciones contengan el separador.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%s|%s", len(a), a, b)
}

// Append anexa un mensaje al historial del par {from, to}, esté o no conectado to.
func (s *ConversationService) Append(ctx context.Context, from, to, text string) (domain.Message, error) {
	if s == nil || s.repo == nil {
		return domain.Message{}, ErrConversationNotConfigured
	}
	if from == "" || to == "" {
		return domain.Message{}, ErrMessageInvalidInput
	}
	if s.maxLen > 0 && utf8.RuneCountInString(text) > s.maxLen {
		return domain.Message{}, ErrMessageTooLong
	}

	key := ConversationKey(from, to)

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC().Format(TimestampLayout)
	last, ok, err := s.repo.Last(ctx, key)
	if err != nil {
		return domain.Message{}, fmt.Errorf("read last message: %w", err)
	}
	// El reloj puede retroceder; el log nunca.
	if ok && ts < last.Timestamp {
		ts = last.Timestamp
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		From:      from,
		Text:      text,
		Timestamp: ts,
	}
	if err := s.repo.Append(ctx, key, msg); err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History devuelve el historial completo del par, o una lista vacía.
func (s *ConversationService) History(ctx context.Context, a, b string) ([]domain.Message, error) {
	if s == nil || s.repo == nil {
		return nil, ErrConversationNotConfigured
	}
	out, err := s.repo.ListByConversation(ctx, ConversationKey(a, b))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if out == nil {
		out = []domain.Message{}
	}
	return out, nil
}
