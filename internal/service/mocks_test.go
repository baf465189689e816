package service

import (
	"sync"

	"go.uber.org/zap"

	"signal-relay/internal/domain"
	"signal-relay/internal/repository"
)

type sentEvent struct {
	Conn    domain.ConnID
	Event   string
	Payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sentEvent
	fail   map[domain.ConnID]error
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{fail: make(map[domain.ConnID]error)}
}

func (e *recordingEmitter) Emit(conn domain.ConnID, event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.fail[conn]; err != nil {
		return err
	}
	e.events = append(e.events, sentEvent{Conn: conn, Event: event, Payload: payload})
	return nil
}

func (e *recordingEmitter) named(conn domain.ConnID, event string) []sentEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []sentEvent
	for _, ev := range e.events {
		if ev.Conn == conn && ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (e *recordingEmitter) to(conn domain.ConnID) []sentEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []sentEvent
	for _, ev := range e.events {
		if ev.Conn == conn {
			out = append(out, ev)
		}
	}
	return out
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	e.events = nil
	e.mu.Unlock()
}

type fakeConn struct {
	id       domain.ConnID
	identity string
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: domain.ConnID(id)} }

func (c *fakeConn) ID() domain.ConnID          { return c.id }
func (c *fakeConn) Identity() string           { return c.identity }
func (c *fakeConn) SetIdentity(address string) { c.identity = address }

type testEnv struct {
	emitter       *recordingEmitter
	registry      *SessionRegistry
	friends       *FriendService
	conversations *ConversationService
	calls         *CallService
	dispatcher    *Dispatcher
}

func newTestEnv(strict bool, limiter EventRateLimiter, opts DispatcherOptions) *testEnv {
	logger := zap.NewNop()
	emitter := newRecordingEmitter()
	registry := NewSessionRegistry(logger, emitter)
	friends := NewFriendService(registry)
	conversations := NewConversationService(repository.NewMemoryMessageRepository(), 0)
	calls := NewCallService(logger, registry, emitter, strict)
	return &testEnv{
		emitter:       emitter,
		registry:      registry,
		friends:       friends,
		conversations: conversations,
		calls:         calls,
		dispatcher:    NewDispatcher(logger, emitter, registry, friends, conversations, calls, limiter, opts),
	}
}

func (e *testEnv) login(address, conn string) domain.UserSession {
	return e.registry.Login(LoginInput{Address: address, DisplayName: address + " name", Conn: domain.ConnID(conn)}).Session
}
