// Package syncer keeps the conversation list consistent with what happens
// on the wire: ordering, unread counts, preview text, and the ephemeral
// typing/presence mirrors.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/bsekhosana/sechat-app-sub011/contract"
	"github.com/bsekhosana/sechat-app-sub011/domain/chat"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
	"github.com/bsekhosana/sechat-app-sub011/envelope"
)

// Syncer consumes gateway events and delivery transitions. All methods run
// on the engine's single event-processing context, so the in-memory
// conversation cache needs no lock.
type Syncer struct {
	log           *slog.Logger
	repo          contract.IConversationRepository
	codec         *envelope.Codec
	notifier      contract.INotifier
	selfID        string
	conversations map[string]*chat.Conversation
}

func NewSyncer(log *slog.Logger, repo contract.IConversationRepository,
	codec *envelope.Codec, notifier contract.INotifier, selfID string) *Syncer {
	return &Syncer{
		log:           log,
		repo:          repo,
		codec:         codec,
		notifier:      notifier,
		selfID:        selfID,
		conversations: make(map[string]*chat.Conversation),
	}
}

// Load warms the in-memory cache from the store so unread counts survive a
// restart.
func (s *Syncer) Load() error {
	conversations, err := s.repo.ListConversations()
	if err != nil {
		return err
	}
	for _, c := range conversations {
		conv := c
		s.conversations[conv.ID] = &conv
	}
	s.log.Info("Conversation cache loaded", "count", len(conversations))
	return nil
}

// HandleMessage applies an inbound message: canonical conversation lookup,
// preview recovery, unread increment, persistence, re-render request.
//
// The wire-supplied conversation id is order-dependent and is deliberately
// ignored; the id is re-derived from the sender/recipient pair.
func (s *Syncer) HandleMessage(ctx context.Context, evt event.MessageReceived, at time.Time) {
	conv := s.getOrCreate(evt.SenderID)
	preview := s.codec.DecodePreview(ctx, evt.Body)

	msg := chat.Message{
		ID:             evt.MessageID,
		ConversationID: conv.ID,
		SenderID:       evt.SenderID,
		RecipientID:    s.selfID,
		ContentType:    chat.ContentText,
		Body:           evt.Body,
		Status:         chat.StatusDelivered,
		CreatedAt:      at,
	}
	if err := s.repo.SaveMessage(msg); err != nil {
		s.log.Error("Failed to persist inbound message", "messageId", msg.ID, "error", err)
	}

	conv.RecordMessage(msg.ID, preview, at, true)
	s.persist(conv)
	s.notifier.ConversationChanged(conv.ID)
}

// RecordOutgoing mirrors a locally submitted message into the conversation
// list. Outgoing messages never touch the unread counter.
func (s *Syncer) RecordOutgoing(msg chat.Message) {
	conv := s.getOrCreate(msg.RecipientID)

	if err := s.repo.SaveMessage(msg); err != nil {
		s.log.Error("Failed to persist outgoing message", "messageId", msg.ID, "error", err)
	}
	conv.RecordMessage(msg.ID, msg.Body, msg.CreatedAt, false)
	s.persist(conv)
	s.notifier.ConversationChanged(conv.ID)
}

// ApplyTransition persists a delivery-state change reported by the tracker
// and requests a re-render of the owning conversation.
func (s *Syncer) ApplyTransition(msg chat.Message, state chat.MessageStatus) {
	if err := s.repo.UpdateMessageStatus(msg.ID, state, time.Now().UTC()); err != nil {
		s.log.Debug("Status update not persisted", "messageId", msg.ID, "error", err)
	}
	s.notifier.ConversationChanged(msg.ConversationID)
}

// MarkConversationRead zeroes the unread counter after the user opened the
// thread.
func (s *Syncer) MarkConversationRead(conversationID string) {
	conv, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	conv.MarkRead()
	s.persist(conv)
	s.notifier.ConversationChanged(conv.ID)
}

// HandleTyping mirrors the peer's typing indicator. The fields are
// best-effort view state and are not persisted.
func (s *Syncer) HandleTyping(evt event.TypingStatus, at time.Time) {
	conv := s.getOrCreate(evt.SenderID)
	conv.SetTyping(evt.IsTyping, at)
	s.notifier.ConversationChanged(conv.ID)
}

// HandlePresence mirrors the peer's online state, also without persistence.
func (s *Syncer) HandlePresence(evt event.PresenceUpdate) {
	conv := s.getOrCreate(evt.SenderID)
	conv.SetPresence(evt.IsOnline, evt.LastSeenTime())
	s.notifier.ConversationChanged(conv.ID)
}

// Conversation exposes the cached view, mainly for the UI collaborator and
// tests.
func (s *Syncer) Conversation(id string) (chat.Conversation, bool) {
	conv, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, false
	}
	return *conv, true
}

// getOrCreate resolves the single conversation for the peer pair, from
// cache first, then the store, creating it on first contact. Lookup by
// canonical id is the sole deduplication mechanism.
func (s *Syncer) getOrCreate(peerID string) *chat.Conversation {
	id := chat.CanonicalConversationID(s.selfID, peerID)
	if conv, ok := s.conversations[id]; ok {
		return conv
	}

	if stored, found, err := s.repo.GetConversation(id); err != nil {
		s.log.Error("Conversation lookup failed", "conversationId", id, "error", err)
	} else if found {
		conv := stored
		s.conversations[id] = &conv
		return &conv
	}

	conv := chat.NewConversation(s.selfID, peerID)
	s.conversations[id] = conv
	s.persist(conv)
	return conv
}

func (s *Syncer) persist(conv *chat.Conversation) {
	if err := s.repo.SaveConversation(*conv); err != nil {
		s.log.Error("Failed to persist conversation", "conversationId", conv.ID, "error", err)
	}
}
