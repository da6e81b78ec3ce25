package syncer

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bsekhosana/sechat-app-sub011/domain/chat"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
	"github.com/bsekhosana/sechat-app-sub011/envelope"
	"github.com/bsekhosana/sechat-app-sub011/mocks"
)

const selfID = "self-session"

func newTestSyncer(t *testing.T) (*Syncer, *mocks.MockIConversationRepository, *mocks.MockINotifier) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIConversationRepository(ctrl)
	notifier := mocks.NewMockINotifier(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	dec, err := envelope.NewDecryptor("test-shared-secret")
	require.NoError(t, err)

	return NewSyncer(log, repo, envelope.NewCodec(log, dec), notifier, selfID), repo, notifier
}

func TestHandleMessage_FirstContact(t *testing.T) {
	req := require.New(t)
	sync, repo, notifier := newTestSyncer(t)
	convID := chat.CanonicalConversationID(selfID, "peer-1")
	at := time.Now().UTC()

	// First contact: cache miss, store miss, conversation created.
	repo.EXPECT().GetConversation(convID).Return(chat.Conversation{}, false, nil)
	repo.EXPECT().SaveConversation(gomock.Any()).Return(nil).Times(2)
	repo.EXPECT().SaveMessage(gomock.Any()).DoAndReturn(func(m chat.Message) error {
		req.Equal("m1", m.ID)
		req.Equal(convID, m.ConversationID)
		req.Equal(chat.StatusDelivered, m.Status)
		return nil
	})
	notifier.EXPECT().ConversationChanged(convID)

	sync.HandleMessage(context.Background(), event.MessageReceived{
		SenderID:  "peer-1",
		Body:      "hello there",
		MessageID: "m1",
		// Wire id uses the sender's ordering; it must not be trusted.
		ConversationID: "chat_peer-1_self-session-WRONG",
	}, at)

	conv, ok := sync.Conversation(convID)
	req.True(ok)
	req.Equal(1, conv.UnreadCount)
	req.Equal("hello there", conv.LastMessagePreview)
	req.Equal("m1", conv.LastMessageID)
	req.Equal(at, conv.LastMessageAt)
}

func TestHandleMessage_EncryptedPreviewPlaceholder(t *testing.T) {
	req := require.New(t)
	sync, repo, notifier := newTestSyncer(t)
	convID := chat.CanonicalConversationID(selfID, "peer-1")

	// Sealed under a key this syncer does not hold.
	other, err := envelope.NewDecryptor("some-other-secret")
	req.NoError(err)
	blob, err := other.SealText("unreachable")
	req.NoError(err)

	repo.EXPECT().GetConversation(convID).Return(chat.Conversation{}, false, nil)
	repo.EXPECT().SaveConversation(gomock.Any()).Return(nil).Times(2)
	repo.EXPECT().SaveMessage(gomock.Any()).Return(nil)
	notifier.EXPECT().ConversationChanged(convID)

	sync.HandleMessage(context.Background(), event.MessageReceived{
		SenderID:  "peer-1",
		Body:      blob,
		MessageID: "m1",
	}, time.Now().UTC())

	conv, _ := sync.Conversation(convID)
	req.Equal(envelope.Placeholder, conv.LastMessagePreview)
}

func TestRecordOutgoing_NoUnreadIncrement(t *testing.T) {
	req := require.New(t)
	sync, repo, notifier := newTestSyncer(t)
	msg := chat.NewMessage(selfID, "peer-1", "on my way", chat.ContentText)

	repo.EXPECT().GetConversation(msg.ConversationID).Return(chat.Conversation{}, false, nil)
	repo.EXPECT().SaveConversation(gomock.Any()).Return(nil).Times(2)
	repo.EXPECT().SaveMessage(msg).Return(nil)
	notifier.EXPECT().ConversationChanged(msg.ConversationID)

	sync.RecordOutgoing(msg)

	conv, ok := sync.Conversation(msg.ConversationID)
	req.True(ok)
	req.Equal(0, conv.UnreadCount)
	req.Equal("on my way", conv.LastMessagePreview)
}

func TestBothDirectionsShareOneConversation(t *testing.T) {
	req := require.New(t)
	sync, repo, notifier := newTestSyncer(t)
	convID := chat.CanonicalConversationID(selfID, "peer-1")

	repo.EXPECT().GetConversation(convID).Return(chat.Conversation{}, false, nil)
	repo.EXPECT().SaveConversation(gomock.Any()).Return(nil).AnyTimes()
	repo.EXPECT().SaveMessage(gomock.Any()).Return(nil).Times(2)
	notifier.EXPECT().ConversationChanged(convID).Times(2)

	sync.RecordOutgoing(chat.NewMessage(selfID, "peer-1", "ping", chat.ContentText))
	sync.HandleMessage(context.Background(), event.MessageReceived{
		SenderID:  "peer-1",
		Body:      "pong",
		MessageID: "m2",
	}, time.Now().UTC())

	conv, ok := sync.Conversation(convID)
	req.True(ok)
	req.Equal("pong", conv.LastMessagePreview)
	req.Equal(1, conv.UnreadCount)
}

func TestLoadWarmsCache(t *testing.T) {
	req := require.New(t)
	sync, repo, _ := newTestSyncer(t)
	stored := chat.Conversation{
		ID:          chat.CanonicalConversationID(selfID, "peer-1"),
		UnreadCount: 3,
	}

	repo.EXPECT().ListConversations().Return([]chat.Conversation{stored}, nil)

	req.NoError(sync.Load())

	conv, ok := sync.Conversation(stored.ID)
	req.True(ok)
	req.Equal(3, conv.UnreadCount)
}

func TestMarkConversationRead(t *testing.T) {
	req := require.New(t)
	sync, repo, notifier := newTestSyncer(t)
	stored := chat.Conversation{
		ID:          chat.CanonicalConversationID(selfID, "peer-1"),
		UnreadCount: 3,
	}
	repo.EXPECT().ListConversations().Return([]chat.Conversation{stored}, nil)
	req.NoError(sync.Load())

	repo.EXPECT().SaveConversation(gomock.Any()).DoAndReturn(func(c chat.Conversation) error {
		req.Equal(0, c.UnreadCount)
		return nil
	})
	notifier.EXPECT().ConversationChanged(stored.ID)

	sync.MarkConversationRead(stored.ID)

	conv, _ := sync.Conversation(stored.ID)
	req.Equal(0, conv.UnreadCount)

	// Unknown ids are ignored without touching the store.
	sync.MarkConversationRead("chat_nobody_nothing")
}

func TestTypingAndPresenceAreNotPersisted(t *testing.T) {
	req := require.New(t)
	sync, repo, notifier := newTestSyncer(t)
	stored := chat.Conversation{ID: chat.CanonicalConversationID(selfID, "peer-1")}
	repo.EXPECT().ListConversations().Return([]chat.Conversation{stored}, nil)
	req.NoError(sync.Load())

	// No SaveConversation expectations: persistence here would fail the test.
	notifier.EXPECT().ConversationChanged(stored.ID).Times(2)

	lastSeen := time.Now().Add(-time.Minute).UnixMilli()
	sync.HandleTyping(event.TypingStatus{SenderID: "peer-1", IsTyping: true}, time.Now().UTC())
	sync.HandlePresence(event.PresenceUpdate{SenderID: "peer-1", IsOnline: true, LastSeenMS: lastSeen})

	conv, _ := sync.Conversation(stored.ID)
	req.True(conv.IsTyping)
	req.True(conv.IsOnline)
	req.Equal(time.UnixMilli(lastSeen).UTC(), conv.LastSeen)
}

func TestApplyTransition(t *testing.T) {
	sync, repo, notifier := newTestSyncer(t)
	msg := chat.NewMessage(selfID, "peer-1", "hello", chat.ContentText)

	repo.EXPECT().UpdateMessageStatus(msg.ID, chat.StatusDelivered, gomock.Any()).Return(nil)
	notifier.EXPECT().ConversationChanged(msg.ConversationID)

	sync.ApplyTransition(msg, chat.StatusDelivered)
}
