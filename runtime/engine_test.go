package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bsekhosana/sechat-app-sub011/dedup"
	"github.com/bsekhosana/sechat-app-sub011/delivery"
	"github.com/bsekhosana/sechat-app-sub011/domain/chat"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
	"github.com/bsekhosana/sechat-app-sub011/envelope"
	"github.com/bsekhosana/sechat-app-sub011/mocks"
	"github.com/bsekhosana/sechat-app-sub011/syncer"
)

const engineSelfID = "self"

type fakeStream struct {
	ch chan event.GatewayEvent
}

func (f *fakeStream) Events() <-chan event.GatewayEvent { return f.ch }

type harness struct {
	engine   *Engine
	loop     *Loop
	tracker  *delivery.Tracker
	stream   *fakeStream
	repo     *mocks.MockIConversationRepository
	notifier *mocks.MockINotifier
	emitter  *mocks.MockIEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	h := &harness{
		repo:     mocks.NewMockIConversationRepository(ctrl),
		notifier: mocks.NewMockINotifier(ctrl),
		emitter:  mocks.NewMockIEmitter(ctrl),
		stream:   &fakeStream{ch: make(chan event.GatewayEvent, 32)},
		loop:     NewLoop(log, 64),
	}

	dec, err := envelope.NewDecryptor("engine-test-secret")
	require.NoError(t, err)

	// Generous timeouts so no timer interferes with the scenario under test.
	h.tracker = delivery.NewTracker(log, h.emitter, h.loop, h.notifier,
		time.Minute, time.Minute, 4)
	sync := syncer.NewSyncer(log, h.repo, envelope.NewCodec(log, dec), h.notifier, engineSelfID)
	h.engine = NewEngine(log, h.loop, h.stream, dedup.New(100), h.tracker, sync, engineSelfID)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) push(evt event.GatewayEvent) {
	h.stream.ch <- evt
}

// settle waits until every pushed event has been processed to completion.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.stream.ch) == 0 },
		2*time.Second, 5*time.Millisecond)
	h.onLoop(t, func() {})
}

// onLoop runs fn on the engine goroutine and waits for it, the only safe way
// to inspect engine-owned state while the loop is running.
func (h *harness) onLoop(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	h.loop.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine loop did not drain in time")
	}
}

func TestDuplicateInboundMessageAbsorbed(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	convID := chat.CanonicalConversationID(engineSelfID, "peer-1")

	h.repo.EXPECT().GetConversation(convID).Return(chat.Conversation{}, false, nil)
	h.repo.EXPECT().SaveConversation(gomock.Any()).Return(nil).AnyTimes()
	// The duplicate must not be persisted a second time.
	h.repo.EXPECT().SaveMessage(gomock.Any()).Return(nil).Times(1)
	h.notifier.EXPECT().ConversationChanged(convID).Times(1)

	h.start(t)

	received := event.MessageReceived{SenderID: "peer-1", Body: "hello", MessageID: "m1"}
	h.push(received)
	h.push(received)
	h.settle(t)

	var unread int
	h.onLoop(t, func() {
		conv, ok := h.engine.syncer.Conversation(convID)
		req.True(ok)
		unread = conv.UnreadCount
	})
	req.Equal(1, unread)
}

func TestOutgoingMessageFullReceiptPipeline(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	convID := chat.CanonicalConversationID(engineSelfID, "peer-1")

	h.repo.EXPECT().GetConversation(convID).Return(chat.Conversation{}, false, nil)
	h.repo.EXPECT().SaveConversation(gomock.Any()).Return(nil).AnyTimes()
	h.repo.EXPECT().SaveMessage(gomock.Any()).Return(nil).Times(1)
	h.notifier.EXPECT().ConversationChanged(convID).AnyTimes()
	h.emitter.EXPECT().Emit(event.NameMessageSend, gomock.Any()).Return(nil).Times(1)

	// Each status change is persisted exactly once, duplicates included.
	h.repo.EXPECT().UpdateMessageStatus(gomock.Any(), chat.StatusPending, gomock.Any()).Return(nil).Times(1)
	h.repo.EXPECT().UpdateMessageStatus(gomock.Any(), chat.StatusSent, gomock.Any()).Return(nil).Times(1)
	h.repo.EXPECT().UpdateMessageStatus(gomock.Any(), chat.StatusDelivered, gomock.Any()).Return(nil).Times(1)
	h.repo.EXPECT().UpdateMessageStatus(gomock.Any(), chat.StatusRead, gomock.Any()).Return(nil).Times(1)

	h.start(t)

	id := h.engine.Submit("peer-1", "hello", chat.ContentText)
	req.NotEmpty(id)
	h.settle(t)

	h.push(event.MessageAcked{MessageID: id})
	h.push(event.ReceiptDelivered{MessageID: id})
	h.push(event.ReceiptDelivered{MessageID: id}) // relay redelivery
	h.push(event.ReceiptRead{MessageID: id})
	h.settle(t)

	var rec delivery.Record
	var ok bool
	h.onLoop(t, func() { rec, ok = h.tracker.Get(id) })
	req.True(ok)
	req.Equal(chat.StatusRead, rec.State)
	req.NotNil(rec.Message.DeliveredAt)
	req.NotNil(rec.Message.ReadAt)
}

func TestReceiptsForUnknownMessagesIgnored(t *testing.T) {
	h := newHarness(t)

	// Nothing tracked, nothing persisted, nothing notified.
	h.start(t)

	h.push(event.MessageAcked{MessageID: "ghost"})
	h.push(event.ReceiptDelivered{MessageID: "ghost"})
	h.push(event.ReceiptRead{MessageID: "ghost"})
	h.settle(t)
}

func TestTypingEventsAreNotDeduplicated(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	convID := chat.CanonicalConversationID(engineSelfID, "peer-1")

	h.repo.EXPECT().GetConversation(convID).Return(chat.Conversation{}, false, nil)
	h.repo.EXPECT().SaveConversation(gomock.Any()).Return(nil).AnyTimes()
	// Typing carries no unique id; both updates must land.
	h.notifier.EXPECT().ConversationChanged(convID).Times(2)

	h.start(t)

	h.push(event.TypingStatus{SenderID: "peer-1", IsTyping: true})
	h.push(event.TypingStatus{SenderID: "peer-1", IsTyping: false})
	h.settle(t)

	var typing bool
	h.onLoop(t, func() {
		conv, ok := h.engine.syncer.Conversation(convID)
		req.True(ok)
		typing = conv.IsTyping
	})
	req.False(typing)
}

func TestNotificationEventsOnlyLogged(t *testing.T) {
	h := newHarness(t)

	h.start(t)

	// None of these touch the store or the notifier.
	h.push(event.SessionRegistered{SessionID: engineSelfID})
	h.push(event.KeyExchange{SenderID: "peer-1", PublicKey: "pk"})
	h.push(event.ConversationDeleted{ConversationID: "chat_peer-1_self"})
	h.push(event.UserBlocked{UserID: "peer-1"})
	h.push(event.UserDeleted{UserID: "peer-1"})
	h.settle(t)
}
