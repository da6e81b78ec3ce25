// Package event defines the typed wire contract of the realtime transport.
// Inbound frames are decoded into one event struct per event name; frames
// that fail validation are dropped by the caller rather than half-applied.
package event

import "time"

// Wire event names. Heartbeat events are handled inside the gateway and
// never reach the public stream.
const (
	NameRegisterSession   = "register_session"
	NameSessionRegistered = "session_registered"
	NameMessageSend       = "message:send"
	NameMessageReceived   = "message:received"
	NameMessageAcked      = "message:acked"
	NameReceiptDelivered  = "receipt:delivered"
	NameReceiptRead       = "receipt:read"
	NameTypingUpdate      = "typing:update"
	NameTypingStatus      = "typing:status_update"
	NamePresenceUpdate    = "presence:update"
	NameHeartbeatPing     = "heartbeat:ping"
	NameHeartbeatPong     = "heartbeat:pong"
	NameConnectionPing    = "connection:ping"
	NameConnectionPong    = "connection:pong"
	NameKeyExchange       = "key_exchange:request"
	NameConversationGone  = "conversation:deleted"
	NameUserBlocked       = "user:blocked"
	NameUserDeleted       = "user:deleted"
)

// Frame is the raw envelope of every websocket message: an event name and
// a key/value payload.
type Frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// GatewayEvent is implemented by every decoded inbound event published on
// the gateway stream.
type GatewayEvent interface {
	Name() string
}

type SessionRegistered struct {
	SessionID string `json:"sessionId" validate:"required"`
}

func (SessionRegistered) Name() string { return NameSessionRegistered }

type MessageReceived struct {
	SenderID       string `json:"senderId" validate:"required"`
	SenderName     string `json:"senderName"`
	Body           string `json:"body" validate:"required"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId" validate:"required"`
}

func (MessageReceived) Name() string { return NameMessageReceived }

type MessageAcked struct {
	MessageID string `json:"messageId" validate:"required"`
}

func (MessageAcked) Name() string { return NameMessageAcked }

type ReceiptDelivered struct {
	MessageID  string `json:"messageId" validate:"required"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

func (ReceiptDelivered) Name() string { return NameReceiptDelivered }

type ReceiptRead struct {
	MessageID  string `json:"messageId" validate:"required"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

func (ReceiptRead) Name() string { return NameReceiptRead }

type TypingStatus struct {
	SenderID string `json:"senderId" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

func (TypingStatus) Name() string { return NameTypingStatus }

type PresenceUpdate struct {
	SenderID   string `json:"senderId" validate:"required"`
	IsOnline   bool   `json:"isOnline"`
	LastSeenMS int64  `json:"lastSeen"`
}

func (PresenceUpdate) Name() string { return NamePresenceUpdate }

// LastSeenTime converts the wire millisecond timestamp; a zero value means
// the peer never reported one.
func (p PresenceUpdate) LastSeenTime() time.Time {
	if p.LastSeenMS == 0 {
		return time.Time{}
	}
	return time.UnixMilli(p.LastSeenMS).UTC()
}

type KeyExchange struct {
	SenderID  string `json:"senderId" validate:"required"`
	PublicKey string `json:"publicKey" validate:"required"`
}

func (KeyExchange) Name() string { return NameKeyExchange }

type ConversationDeleted struct {
	ConversationID string `json:"conversationId" validate:"required"`
	SenderID       string `json:"senderId"`
}

func (ConversationDeleted) Name() string { return NameConversationGone }

type UserBlocked struct {
	UserID string `json:"userId" validate:"required"`
}

func (UserBlocked) Name() string { return NameUserBlocked }

type UserDeleted struct {
	UserID string `json:"userId" validate:"required"`
}

func (UserDeleted) Name() string { return NameUserDeleted }
