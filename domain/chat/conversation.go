package chat

import (
	"fmt"
	"time"
)

const conversationPrefix = "chat"

// CanonicalConversationID maps an unordered pair of participant ids to one
// deterministic conversation id. Both sides of a thread compute the same
// value without coordination, so whichever peer creates the local record
// first, the other one resolves to it instead of forking a duplicate.
//
// Wire-supplied conversation ids are order-dependent and must be re-derived
// through this function before any lookup.
func CanonicalConversationID(idA, idB string) string {
	if idB < idA {
		idA, idB = idB, idA
	}
	return fmt.Sprintf("%s_%s_%s", conversationPrefix, idA, idB)
}

// Conversation is the synchronized view of a two-party thread.
// Presence fields are best-effort mirrors of the last event received and
// are never treated as authoritative.
type Conversation struct {
	ID                 string
	ParticipantAID     string
	ParticipantBID     string
	LastMessageID      string
	LastMessagePreview string
	LastMessageAt      time.Time
	UnreadCount        int
	IsOnline           bool
	LastSeen           time.Time
	IsTyping           bool
	TypingStartedAt    time.Time
}

// NewConversation creates the single conversation record for a participant
// pair, normalizing the participant order to match the canonical id.
func NewConversation(idA, idB string) *Conversation {
	if idB < idA {
		idA, idB = idB, idA
	}
	return &Conversation{
		ID:             CanonicalConversationID(idA, idB),
		ParticipantAID: idA,
		ParticipantBID: idB,
	}
}

// RecordMessage updates the last-message fields for a new message in the
// thread. Inbound messages increment the unread counter, outgoing ones do not.
func (c *Conversation) RecordMessage(messageID, preview string, at time.Time, inbound bool) {
	c.LastMessageID = messageID
	c.LastMessagePreview = preview
	c.LastMessageAt = at
	if inbound {
		c.UnreadCount++
	}
}

// MarkRead zeroes the unread counter after an explicit read-mark.
func (c *Conversation) MarkRead() {
	c.UnreadCount = 0
}

// SetTyping mirrors a typing event from the peer.
func (c *Conversation) SetTyping(isTyping bool, at time.Time) {
	c.IsTyping = isTyping
	if isTyping {
		c.TypingStartedAt = at
	}
}

// SetPresence mirrors an online/offline event from the peer.
func (c *Conversation) SetPresence(isOnline bool, lastSeen time.Time) {
	c.IsOnline = isOnline
	c.LastSeen = lastSeen
}
