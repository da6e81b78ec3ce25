// Package chat contains core concepts of the messaging engine.
// This file defines the Message aggregate and its delivery status rules.
// Messages are immutable once created; only their status timeline moves.
package chat

import (
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentText   ContentType = "text"
	ContentReply  ContentType = "reply"
	ContentSystem ContentType = "system"
)

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Message represents a single chat item.
// The ID is assigned at submission time and never changes, even across
// delivery retries. Body holds plaintext for outgoing messages and the
// opaque ciphertext blob for messages taken off the wire.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	ContentType    ContentType
	Body           string
	Status         MessageStatus
	CreatedAt      time.Time
	DeliveredAt    *time.Time
	ReadAt         *time.Time
}

// NewMessage builds an outgoing message in pending state with a fresh ID.
// The conversation id is always derived from the participant pair, never
// taken from the caller.
func NewMessage(senderID, recipientID, body string, contentType ContentType) Message {
	return Message{
		ID:             uuid.NewString(),
		ConversationID: CanonicalConversationID(senderID, recipientID),
		SenderID:       senderID,
		RecipientID:    recipientID,
		ContentType:    contentType,
		Body:           body,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

// statusRank orders the delivery timeline. Failed sits outside the ladder
// and may be applied from any non-read state.
func statusRank(s MessageStatus) int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return -1
	}
}

// ApplyStatus moves the message along its delivery timeline.
// Transitions are monotonic: a read message never downgrades to delivered,
// a delivered one never falls back to sent, and delivered/read stamp their
// timestamps exactly once.
func (m *Message) ApplyStatus(status MessageStatus, at time.Time) {
	if m.Status == StatusRead {
		return
	}
	if rank := statusRank(status); rank >= 0 && rank <= statusRank(m.Status) {
		return
	}
	switch status {
	case StatusDelivered:
		if m.DeliveredAt == nil {
			m.DeliveredAt = &at
		}
	case StatusRead:
		// A read observation implies delivery even if the delivered
		// receipt was never seen.
		if m.DeliveredAt == nil {
			m.DeliveredAt = &at
		}
		if m.ReadAt == nil {
			m.ReadAt = &at
		}
	}
	m.Status = status
}
