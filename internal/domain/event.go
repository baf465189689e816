package domain

import "encoding/json"

// Eventos entrantes.
const (
	EventLogin           = "login"
	EventAddFriend       = "add-friend"
	EventGetFriends      = "get-friends"
	EventMessage         = "message"
	EventGetConversation = "get-conversation"
	EventCallRequest     = "call-request"
	EventCallAccept      = "call-accept"
	EventCallReject      = "call-reject"
	EventWebRTCSignal    = "webrtc-signal"
	EventCallEnd         = "call-end"
)

// Eventos salientes. "message" y "webrtc-signal" comparten nombre con los entrantes.
const (
	EventOnlineUsers     = "online-users"
	EventUserOnline      = "user-online"
	EventUserOffline     = "user-offline"
	EventFriendAdded     = "friend-added"
	EventFriendNotFound  = "friend-not-found"
	EventFriendsList     = "friends-list"
	EventMessageSent     = "message-sent"
	EventConversation    = "conversation"
	EventIncomingCall    = "incoming-call"
	EventCallFailed      = "call-failed"
	EventCallAccepted    = "call-accepted"
	EventCallRejected    = "call-rejected"
	EventCallEnded       = "call-ended"
	EventError           = "error"
	EventSessionReplaced = "session-replaced"
)

// Códigos del evento "error".
const (
	ErrorCodeUnauthenticated = "unauthenticated"
	ErrorCodeBadRequest      = "bad-request"
	ErrorCodeUnknownEvent    = "unknown-event"
	ErrorCodeRateLimited     = "rate-limited"
	ErrorCodeMessageTooLong  = "message-too-long"
)

// Envelope es la trama JSON que viaja por el websocket en ambos sentidos.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type LoginPayload struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

type AddFriendPayload struct {
	FriendAddress string `json:"friendAddress"`
}

type MessagePayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type GetConversationPayload struct {
	With string `json:"with"`
}

// CallTargetPayload cubre call-request y call-end.
type CallTargetPayload struct {
	To string `json:"to"`
}

// CallAnswerPayload cubre call-accept y call-reject; From es quien llamó.
type CallAnswerPayload struct {
	From string `json:"from"`
}

type SignalPayload struct {
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

type FriendNotFound struct {
	Address string `json:"address"`
}

type IncomingMessage struct {
	From        string `json:"from"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	DisplayName string `json:"displayName"`
}

type MessageSent struct {
	To        string `json:"to"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type Conversation struct {
	With     string    `json:"with"`
	Messages []Message `json:"messages"`
}

type IncomingCall struct {
	From        string `json:"from"`
	DisplayName string `json:"displayName"`
}

type CallFailed struct {
	Reason string `json:"reason"`
}

type CallAnswered struct {
	To string `json:"to"`
}

type CallEndedPayload struct {
	From string `json:"from"`
}

type SignalRelay struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

type ErrorEvent struct {
	Code  string `json:"code"`
	Event string `json:"event"`
}

type SessionReplaced struct {
	Address string `json:"address"`
}
