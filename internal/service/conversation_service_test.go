package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"signal-relay/internal/domain"
	"signal-relay/internal/repository"
)

type failingMessageRepo struct {
	appendErr error
	lastErr   error
	listErr   error
}

func (m *failingMessageRepo) Append(_ context.Context, _ string, _ domain.Message) error {
	return m.appendErr
}

func (m *failingMessageRepo) ListByConversation(_ context.Context, _ string) ([]domain.Message, error) {
	return nil, m.listErr
}

func (m *failingMessageRepo) Last(_ context.Context, _ string) (domain.Message, bool, error) {
	return domain.Message{}, false, m.lastErr
}

func TestConversationKey_Symmetric(t *testing.T) {
	pairs := [][2]string{{"alice", "bob"}, {"b", "a"}, {"x", "x"}, {"", "z"}}
	for _, p := range pairs {
		if ConversationKey(p[0], p[1]) != ConversationKey(p[1], p[0]) {
			t.Fatalf("key not symmetric for %v", p)
		}
	}
	if got := ConversationKey("bob", "alice"); got != "5:alice|bob" {
		t.Fatalf("expected 5:alice|bob, got %q", got)
	}
}

func TestConversationKey_DistinctPairsNeverCollide(t *testing.T) {
	pairs := [][2][2]string{
		{{"a_b", "c"}, {"a", "b_c"}},
		{{"a|b", "c"}, {"a", "b|c"}},
		{{"1:a", "b"}, {"1", "a|b"}},
		{{" bob", "alice"}, {"bob", "alice"}},
	}
	for _, p := range pairs {
		if ConversationKey(p[0][0], p[0][1]) == ConversationKey(p[1][0], p[1][1]) {
			t.Fatalf("pairs %v and %v share key %q", p[0], p[1], ConversationKey(p[0][0], p[0][1]))
		}
	}
}

func TestConversationServiceHistory_SeparatorInAddress(t *testing.T) {
	svc := NewConversationService(repository.NewMemoryMessageRepository(), 0)
	ctx := context.Background()

	if _, err := svc.Append(ctx, "a_b", "c", "secret for c"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	history, err := svc.History(ctx, "a", "b_c")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected other pair's log to stay private, got %+v", history)
	}
	if own, _ := svc.History(ctx, "c", "a_b"); len(own) != 1 {
		t.Fatalf("expected own history, got %+v", own)
	}
}

func TestConversationServiceAppend_HistoryFromEitherSide(t *testing.T) {
	svc := NewConversationService(repository.NewMemoryMessageRepository(), 0)
	ctx := context.Background()

	msg, err := svc.Append(ctx, "alice", "bob", "hi")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if msg.ID == "" || msg.From != "alice" || msg.Text != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if _, err := time.Parse(TimestampLayout, msg.Timestamp); err != nil {
		t.Fatalf("expected ISO timestamp, got %q: %v", msg.Timestamp, err)
	}
	if _, err := svc.Append(ctx, "bob", "alice", "hey"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	history, err := svc.History(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(history) != 2 || history[0].Text != "hi" || history[1].Text != "hey" {
		t.Fatalf("expected insertion order, got %+v", history)
	}
}

func TestConversationServiceHistory_EmptyIsNotNil(t *testing.T) {
	svc := NewConversationService(repository.NewMemoryMessageRepository(), 0)
	out, err := svc.History(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty list, got %+v", out)
	}
}

func TestConversationServiceAppend_TimestampNeverGoesBack(t *testing.T) {
	svc := NewConversationService(repository.NewMemoryMessageRepository(), 0)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second)}
	i := 0
	svc.now = func() time.Time {
		ts := clock[i]
		i++
		return ts
	}
	ctx := context.Background()

	first, _ := svc.Append(ctx, "a", "b", "1")
	second, _ := svc.Append(ctx, "b", "a", "2")
	third, _ := svc.Append(ctx, "a", "b", "3")

	if first.Timestamp != "2024-05-01T12:00:00.000Z" {
		t.Fatalf("unexpected timestamp format %q", first.Timestamp)
	}
	if second.Timestamp != first.Timestamp {
		t.Fatalf("expected clamped timestamp %q, got %q", first.Timestamp, second.Timestamp)
	}
	if third.Timestamp <= second.Timestamp {
		t.Fatalf("expected later timestamp, got %q", third.Timestamp)
	}
}

func TestConversationServiceAppend_Validation(t *testing.T) {
	svc := NewConversationService(repository.NewMemoryMessageRepository(), 5)
	ctx := context.Background()

	if _, err := svc.Append(ctx, "a", "", "hi"); !errors.Is(err, ErrMessageInvalidInput) {
		t.Fatalf("expected ErrMessageInvalidInput, got %v", err)
	}
	if _, err := svc.Append(ctx, "a", "b", strings.Repeat("x", 6)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if _, err := svc.Append(ctx, "a", "b", "ñññññ"); err != nil {
		t.Fatalf("expected rune-counted length to pass, got %v", err)
	}
}

func TestConversationService_RepositoryErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewConversationService(&failingMessageRepo{lastErr: errors.New("boom")}, 0)
	if _, err := svc.Append(ctx, "a", "b", "hi"); err == nil {
		t.Fatalf("expected error on last lookup")
	}
	svc = NewConversationService(&failingMessageRepo{appendErr: errors.New("boom")}, 0)
	if _, err := svc.Append(ctx, "a", "b", "hi"); err == nil {
		t.Fatalf("expected error on append")
	}
	svc = NewConversationService(&failingMessageRepo{listErr: errors.New("boom")}, 0)
	if _, err := svc.History(ctx, "a", "b"); err == nil {
		t.Fatalf("expected error on list")
	}
}

func TestConversationService_NotConfigured(t *testing.T) {
	var svc *ConversationService
	if _, err := svc.Append(context.Background(), "a", "b", "hi"); !errors.Is(err, ErrConversationNotConfigured) {
		t.Fatalf("expected ErrConversationNotConfigured, got %v", err)
	}
	svc = NewConversationService(nil, 0)
	if _, err := svc.History(context.Background(), "a", "b"); !errors.Is(err, ErrConversationNotConfigured) {
		t.Fatalf("expected ErrConversationNotConfigured, got %v", err)
	}
}
