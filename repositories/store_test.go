package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/bsekhosana/sechat-app-sub011/domain/chat"
	"github.com/bsekhosana/sechat-app-sub011/errors"
)

func newTestStore(t *testing.T, limitMessages *int) Store {
	t.Helper()
	options := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db, logs.GetLoggerFromLevel(slog.LevelDebug), limitMessages)
}

func testMessage(conversationID, id string, at time.Time) chat.Message {
	return chat.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       "alice",
		RecipientID:    "bob",
		ContentType:    chat.ContentText,
		Body:           "body of " + id,
		Status:         chat.StatusPending,
		CreatedAt:      at,
	}
}

func TestConversationRoundTrip(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, nil)
	at := time.Now().UTC().Truncate(time.Millisecond)

	conv := chat.Conversation{
		ID:                 "chat_alice_bob",
		ParticipantAID:     "alice",
		ParticipantBID:     "bob",
		LastMessageID:      "m1",
		LastMessagePreview: "see you soon",
		LastMessageAt:      at,
		UnreadCount:        2,
		// Ephemeral view state, must not survive the round trip.
		IsOnline: true,
		IsTyping: true,
	}

	req.NoError(store.SaveConversation(conv))

	got, found, err := store.GetConversation(conv.ID)
	req.NoError(err)
	req.True(found)
	req.Equal(conv.ID, got.ID)
	req.Equal(2, got.UnreadCount)
	req.Equal("see you soon", got.LastMessagePreview)
	req.True(got.LastMessageAt.Equal(at))
	req.False(got.IsOnline)
	req.False(got.IsTyping)
}

func TestGetConversation_Missing(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, nil)

	_, found, err := store.GetConversation("chat_nobody_nothing")

	req.NoError(err)
	req.False(found)
}

func TestListConversations(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, nil)

	req.NoError(store.SaveConversation(chat.Conversation{ID: "chat_alice_bob"}))
	req.NoError(store.SaveConversation(chat.Conversation{ID: "chat_alice_carol"}))
	// Overwrite is an upsert, not a duplicate.
	req.NoError(store.SaveConversation(chat.Conversation{ID: "chat_alice_bob", UnreadCount: 1}))

	conversations, err := store.ListConversations()
	req.NoError(err)
	req.Len(conversations, 2)

	ids := lo.Map(conversations, func(c chat.Conversation, _ int) string { return c.ID })
	req.Contains(ids, "chat_alice_bob")
	req.Contains(ids, "chat_alice_carol")
}

func TestGetMessages_NewestFirst(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, nil)
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		msg := testMessage("chat_alice_bob", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second))
		req.NoError(store.SaveMessage(msg))
	}
	// A message in another conversation must not leak into the scan.
	req.NoError(store.SaveMessage(testMessage("chat_alice_carol", "other", base)))

	messages, _, err := store.GetMessages("chat_alice_bob", nil)
	req.NoError(err)
	req.Len(messages, 5)
	req.Equal("m4", messages[0].ID)
	req.Equal("m0", messages[4].ID)
}

func TestGetMessages_CursorPagination(t *testing.T) {
	req := require.New(t)
	limit := 2
	store := newTestStore(t, &limit)
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		msg := testMessage("chat_alice_bob", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second))
		req.NoError(store.SaveMessage(msg))
	}

	// First page: the two newest.
	page, cursor, err := store.GetMessages("chat_alice_bob", nil)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("m4", page[0].ID)
	req.Equal("m3", page[1].ID)
	req.NotNil(cursor)

	// Second page resumes right after the cursor.
	page, cursor, err = store.GetMessages("chat_alice_bob", cursor)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("m2", page[0].ID)
	req.Equal("m1", page[1].ID)

	// Last page holds the remainder.
	page, _, err = store.GetMessages("chat_alice_bob", cursor)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("m0", page[0].ID)
}

func TestUpdateMessageStatus(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, nil)
	at := time.Now().UTC().Truncate(time.Millisecond)

	msg := testMessage("chat_alice_bob", "m1", at)
	req.NoError(store.SaveMessage(msg))

	req.NoError(store.UpdateMessageStatus("m1", chat.StatusDelivered, at.Add(time.Second)))

	messages, _, err := store.GetMessages("chat_alice_bob", nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(chat.StatusDelivered, messages[0].Status)
	req.NotNil(messages[0].DeliveredAt)
	req.True(messages[0].DeliveredAt.Equal(at.Add(time.Second)))
	// The chronological key is untouched by the rewrite.
	req.True(messages[0].CreatedAt.Equal(at))
}

func TestUpdateMessageStatus_UnknownID(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, nil)

	err := store.UpdateMessageStatus("ghost", chat.StatusDelivered, time.Now().UTC())

	req.ErrorIs(err, errors.ErrMessageMissing)
}

func TestSameTimestampMessagesBothSurvive(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, nil)
	at := time.Now().UTC()

	req.NoError(store.SaveMessage(testMessage("chat_alice_bob", "m1", at)))
	req.NoError(store.SaveMessage(testMessage("chat_alice_bob", "m2", at)))

	messages, _, err := store.GetMessages("chat_alice_bob", nil)
	req.NoError(err)
	req.Len(messages, 2)
}
