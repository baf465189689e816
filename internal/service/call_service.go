package service

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"signal-relay/internal/domain"
)

const (
	CallReasonOffline    = "User offline"
	CallReasonSelf       = "Invalid target"
	CallReasonInProgress = "Call already in progress"
)

var (
	ErrCallTargetOffline = errors.New("call target offline")
	ErrCallSelf          = errors.New("call to self")
	ErrCallOutOfOrder    = errors.New("call event out of order")
	ErrCallInProgress    = errors.New("call already in progress")
)

// CallService releva la señalización de llamadas y sigue el estado de cada
// par ordenado (caller, callee). El servidor no orquesta: no hay timeouts
// y solo call-request informa de un destino desconectado.
//
// Con strict activo se descartan los eventos que no corresponden al estado
// actual (aceptar sin llamada sonando, señal sin llamada, etc.).
type CallService struct {
	logger    *zap.Logger
	directory Directory
	emitter   Emitter
	strict    bool

	mu     sync.Mutex
	states map[domain.CallPair]domain.CallState
}

func NewCallService(logger *zap.Logger, directory Directory, emitter Emitter, strict bool) *CallService {
	return &CallService{
		logger:    logger,
		directory: directory,
		emitter:   emitter,
		strict:    strict,
		states:    make(map[domain.CallPair]domain.CallState),
	}
}

// State devuelve el estado del par; CallIdle si nunca hubo llamada.
func (s *CallService) State(caller, callee string) domain.CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(domain.CallPair{Caller: caller, Callee: callee})
}

// Request inicia una llamada de caller a to.
func (s *CallService) Request(caller domain.UserSession, to string) error {
	if to == "" || to == caller.Address {
		s.emit(caller.Conn, domain.EventCallFailed, domain.CallFailed{Reason: CallReasonSelf})
		return ErrCallSelf
	}
	target, ok := s.directory.Lookup(to)
	if !ok {
		s.emit(caller.Conn, domain.EventCallFailed, domain.CallFailed{Reason: CallReasonOffline})
		return ErrCallTargetOffline
	}

	pair := domain.CallPair{Caller: caller.Address, Callee: to}
	s.mu.Lock()
	if s.strict && (s.stateLocked(pair).Live() || s.stateLocked(pair.Reversed()).Live()) {
		s.mu.Unlock()
		s.emit(caller.Conn, domain.EventCallFailed, domain.CallFailed{Reason: CallReasonInProgress})
		return ErrCallInProgress
	}
	s.states[pair] = domain.CallRinging
	s.mu.Unlock()

	s.logger.Info("call requested", zap.String("from", caller.Address), zap.String("to", to))
	s.emit(target.Conn, domain.EventIncomingCall, domain.IncomingCall{From: caller.Address, DisplayName: caller.DisplayName})
	return nil
}

// Accept: acceptor contesta la llamada que from le hizo.
func (s *CallService) Accept(acceptor string, from string) error {
	return s.answer(acceptor, from, domain.CallActive, domain.EventCallAccepted)
}

// Reject: rejecter rechaza la llamada que from le hizo.
func (s *CallService) Reject(rejecter string, from string) error {
	return s.answer(rejecter, from, domain.CallEnded, domain.EventCallRejected)
}

func (s *CallService) answer(callee, caller string, next domain.CallState, event string) error {
	target, ok := s.directory.Lookup(caller)
	if !ok {
		return ErrCallTargetOffline
	}

	pair := domain.CallPair{Caller: caller, Callee: callee}
	s.mu.Lock()
	if s.strict && s.stateLocked(pair) != domain.CallRinging {
		s.mu.Unlock()
		s.logger.Warn("call answer out of order",
			zap.String("event", event),
			zap.String("caller", caller),
			zap.String("callee", callee),
		)
		return ErrCallOutOfOrder
	}
	s.states[pair] = next
	s.mu.Unlock()

	s.logger.Info("call answered", zap.String("event", event), zap.String("caller", caller), zap.String("callee", callee))
	s.emit(target.Conn, event, domain.CallAnswered{To: callee})
	return nil
}

// Signal reenvía data (SDP o ICE) sin interpretarla.
func (s *CallService) Signal(sender, to string, data json.RawMessage) error {
	target, ok := s.directory.Lookup(to)
	if !ok {
		return ErrCallTargetOffline
	}
	if s.strict {
		s.mu.Lock()
		live := s.stateLocked(domain.CallPair{Caller: sender, Callee: to}).Live() ||
			s.stateLocked(domain.CallPair{Caller: to, Callee: sender}).Live()
		s.mu.Unlock()
		if !live {
			s.logger.Warn("signal without call", zap.String("from", sender), zap.String("to", to))
			return ErrCallOutOfOrder
		}
	}
	s.logger.Debug("signal relayed", zap.String("from", sender), zap.String("to", to))
	s.emit(target.Conn, domain.EventWebRTCSignal, domain.SignalRelay{From: sender, Data: data})
	return nil
}

// End cuelga la llamada entre sender y to, sin importar quién llamó.
func (s *CallService) End(sender, to string) error {
	target, ok := s.directory.Lookup(to)
	if !ok {
		return ErrCallTargetOffline
	}

	s.mu.Lock()
	ended := false
	for _, pair := range []domain.CallPair{{Caller: sender, Callee: to}, {Caller: to, Callee: sender}} {
		if s.stateLocked(pair).Live() {
			s.states[pair] = domain.CallEnded
			ended = true
		}
	}
	s.mu.Unlock()
	if s.strict && !ended {
		s.logger.Warn("call end without call", zap.String("from", sender), zap.String("to", to))
		return ErrCallOutOfOrder
	}

	s.logger.Info("call ended", zap.String("from", sender), zap.String("to", to))
	s.emit(target.Conn, domain.EventCallEnded, domain.CallEndedPayload{From: sender})
	return nil
}

// EndAll termina toda llamada viva en la que participa address y avisa
// a los pares que siguen conectados. Se usa al desconectar.
func (s *CallService) EndAll(address string) int {
	s.mu.Lock()
	var peers []string
	seen := make(map[string]struct{})
	for pair, state := range s.states {
		if !state.Live() {
			continue
		}
		var peer string
		switch address {
		case pair.Caller:
			peer = pair.Callee
		case pair.Callee:
			peer = pair.Caller
		default:
			continue
		}
		s.states[pair] = domain.CallEnded
		if _, dup := seen[peer]; !dup {
			seen[peer] = struct{}{}
			peers = append(peers, peer)
		}
	}
	s.mu.Unlock()
	sort.Strings(peers)

	for _, peer := range peers {
		if target, ok := s.directory.Lookup(peer); ok {
			s.emit(target.Conn, domain.EventCallEnded, domain.CallEndedPayload{From: address})
		}
	}
	if len(peers) > 0 {
		s.logger.Info("calls ended on disconnect", zap.String("address", address), zap.Int("count", len(peers)))
	}
	return len(peers)
}

func (s *CallService) stateLocked(pair domain.CallPair) domain.CallState {
	if st, ok := s.states[pair]; ok {
		return st
	}
	return domain.CallIdle
}

func (s *CallService) emit(conn domain.ConnID, event string, payload any) {
	if err := s.emitter.Emit(conn, event, payload); err != nil {
		s.logger.Warn("emit failed", zap.String("event", event), zap.String("conn", string(conn)), zap.Error(err))
	}
}
