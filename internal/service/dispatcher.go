package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"signal-relay/internal/domain"
)

// Dispatcher recibe los eventos de cada conexión, resuelve la dirección del
// emisor a partir de la identidad ligada a la conexión y los enruta.
//
// Cada evento se procesa completo bajo un único mutex: login, add-friend,
// message y logout quedan serializados. Emitir solo encola, así que el
// mutex nunca espera por la red.
type Dispatcher struct {
	logger        *zap.Logger
	emitter       Emitter
	registry      *SessionRegistry
	friends       *FriendService
	conversations *ConversationService
	calls         *CallService
	limiter       EventRateLimiter
	opts          DispatcherOptions

	mu sync.Mutex
}

type DispatcherOptions struct {
	// ResetFriendsOnLogin vacía la lista de contactos en cada login.
	ResetFriendsOnLogin bool
}

// eventos sujetos a rate limit.
var limitedEvents = map[string]bool{
	domain.EventMessage:     true,
	domain.EventCallRequest: true,
	domain.EventAddFriend:   true,
}

func NewDispatcher(
	logger *zap.Logger,
	emitter Emitter,
	registry *SessionRegistry,
	friends *FriendService,
	conversations *ConversationService,
	calls *CallService,
	limiter EventRateLimiter,
	opts DispatcherOptions,
) *Dispatcher {
	if limiter == nil {
		limiter = NewUnlimitedRateLimiter()
	}
	return &Dispatcher{
		logger:        logger,
		emitter:       emitter,
		registry:      registry,
		friends:       friends,
		conversations: conversations,
		calls:         calls,
		limiter:       limiter,
		opts:          opts,
	}
}

// Handle procesa un evento entrante de conn. Nunca falla: los errores se
// devuelven al emisor como eventos.
func (d *Dispatcher) Handle(ctx context.Context, conn domain.Conn, event string, data json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if event == domain.EventLogin {
		d.handleLogin(conn, data)
		return
	}

	sender, ok := d.sender(conn)
	if !ok {
		d.logger.Warn("unauthenticated event", zap.String("event", event), zap.String("conn", string(conn.ID())))
		d.reject(conn.ID(), domain.ErrorCodeUnauthenticated, event)
		return
	}

	if limitedEvents[event] && !d.limiter.Allow(RateLimitKey(sender.Address, event)) {
		d.logger.Warn("event rate limited", zap.String("event", event), zap.String("address", sender.Address))
		d.reject(sender.Conn, domain.ErrorCodeRateLimited, event)
		return
	}

	switch event {
	case domain.EventAddFriend:
		d.handleAddFriend(sender, data)
	case domain.EventGetFriends:
		d.emit(sender.Conn, domain.EventFriendsList, d.friends.ListFriends(sender.Address))
	case domain.EventMessage:
		d.handleMessage(ctx, sender, data)
	case domain.EventGetConversation:
		d.handleGetConversation(ctx, sender, data)
	case domain.EventCallRequest:
		var p domain.CallTargetPayload
		if d.decode(sender.Conn, event, data, &p) {
			_ = d.calls.Request(sender, p.To)
		}
	case domain.EventCallAccept:
		var p domain.CallAnswerPayload
		if d.decode(sender.Conn, event, data, &p) {
			_ = d.calls.Accept(sender.Address, p.From)
		}
	case domain.EventCallReject:
		var p domain.CallAnswerPayload
		if d.decode(sender.Conn, event, data, &p) {
			_ = d.calls.Reject(sender.Address, p.From)
		}
	case domain.EventWebRTCSignal:
		var p domain.SignalPayload
		if d.decode(sender.Conn, event, data, &p) {
			_ = d.calls.Signal(sender.Address, p.To, p.Data)
		}
	case domain.EventCallEnd:
		var p domain.CallTargetPayload
		if d.decode(sender.Conn, event, data, &p) {
			_ = d.calls.End(sender.Address, p.To)
		}
	default:
		d.logger.Warn("unknown event", zap.String("event", event), zap.String("address", sender.Address))
		d.reject(sender.Conn, domain.ErrorCodeUnknownEvent, event)
	}
}

// Disconnect cierra la sesión ligada a conn, si todavía es suya.
func (d *Dispatcher) Disconnect(conn domain.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	address := conn.Identity()
	if address == "" {
		return
	}
	d.logout(address, conn.ID())
}

func (d *Dispatcher) handleLogin(conn domain.Conn, data json.RawMessage) {
	var p domain.LoginPayload
	if !d.decode(conn.ID(), domain.EventLogin, data, &p) {
		return
	}
	if p.Address == "" {
		d.reject(conn.ID(), domain.ErrorCodeBadRequest, domain.EventLogin)
		return
	}

	// La misma conexión cambia de dirección: la anterior deja de estar en línea.
	if prev := conn.Identity(); prev != "" && prev != p.Address {
		d.logout(prev, conn.ID())
	}
	conn.SetIdentity(p.Address)

	if d.opts.ResetFriendsOnLogin {
		d.friends.Reset(p.Address)
	}
	d.registry.Login(LoginInput{
		Address:     p.Address,
		DisplayName: p.DisplayName,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Conn:        conn.ID(),
	})
}

func (d *Dispatcher) handleAddFriend(sender domain.UserSession, data json.RawMessage) {
	var p domain.AddFriendPayload
	if !d.decode(sender.Conn, domain.EventAddFriend, data, &p) {
		return
	}
	friend, err := d.friends.AddFriend(sender.Address, p.FriendAddress)
	if err != nil {
		d.emit(sender.Conn, domain.EventFriendNotFound, domain.FriendNotFound{Address: p.FriendAddress})
		return
	}
	d.logger.Info("friend added", zap.String("address", sender.Address), zap.String("friend", friend.Address))
	d.emit(sender.Conn, domain.EventFriendAdded, friend)
}

func (d *Dispatcher) handleMessage(ctx context.Context, sender domain.UserSession, data json.RawMessage) {
	var p domain.MessagePayload
	if !d.decode(sender.Conn, domain.EventMessage, data, &p) {
		return
	}
	msg, err := d.conversations.Append(ctx, sender.Address, p.To, p.Text)
	if err != nil {
		switch {
		case errors.Is(err, ErrMessageTooLong):
			d.reject(sender.Conn, domain.ErrorCodeMessageTooLong, domain.EventMessage)
		case errors.Is(err, ErrMessageInvalidInput):
			d.reject(sender.Conn, domain.ErrorCodeBadRequest, domain.EventMessage)
		default:
			d.logger.Error("append message failed", zap.Error(err), zap.String("address", sender.Address))
		}
		return
	}

	to := p.To
	if recipient, ok := d.registry.Lookup(to); ok {
		d.emit(recipient.Conn, domain.EventMessage, domain.IncomingMessage{
			From:        msg.From,
			Text:        msg.Text,
			Timestamp:   msg.Timestamp,
			DisplayName: sender.DisplayName,
		})
	}
	d.emit(sender.Conn, domain.EventMessageSent, domain.MessageSent{To: to, Text: msg.Text, Timestamp: msg.Timestamp})
}

func (d *Dispatcher) handleGetConversation(ctx context.Context, sender domain.UserSession, data json.RawMessage) {
	var p domain.GetConversationPayload
	if !d.decode(sender.Conn, domain.EventGetConversation, data, &p) {
		return
	}
	messages, err := d.conversations.History(ctx, sender.Address, p.With)
	if err != nil {
		d.logger.Error("load conversation failed", zap.Error(err), zap.String("address", sender.Address))
		return
	}
	d.emit(sender.Conn, domain.EventConversation, domain.Conversation{With: p.With, Messages: messages})
}

// sender devuelve la sesión ligada a conn. Una conexión sin login, o cuya
// dirección fue tomada por otra conexión, no tiene sesión.
func (d *Dispatcher) sender(conn domain.Conn) (domain.UserSession, bool) {
	address := conn.Identity()
	if address == "" {
		return domain.UserSession{}, false
	}
	session, ok := d.registry.Lookup(address)
	if !ok || session.Conn != conn.ID() {
		return domain.UserSession{}, false
	}
	return session, true
}

func (d *Dispatcher) logout(address string, conn domain.ConnID) {
	if d.registry.Logout(address, conn) {
		d.calls.EndAll(address)
	}
}

func (d *Dispatcher) decode(conn domain.ConnID, event string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		d.logger.Warn("invalid event payload", zap.String("event", event), zap.Error(err))
		d.reject(conn, domain.ErrorCodeBadRequest, event)
		return false
	}
	return true
}

func (d *Dispatcher) reject(conn domain.ConnID, code, event string) {
	d.emit(conn, domain.EventError, domain.ErrorEvent{Code: code, Event: event})
}

func (d *Dispatcher) emit(conn domain.ConnID, event string, payload any) {
	if err := d.emitter.Emit(conn, event, payload); err != nil {
		d.logger.Warn("emit failed", zap.String("event", event), zap.String("conn", string(conn)), zap.Error(err))
	}
}
