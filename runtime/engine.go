// Package runtime wires the gateway stream, the dedup cache, the delivery
// tracker and the conversation synchronizer into one single-threaded
// event-processing engine.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/bsekhosana/sechat-app-sub011/dedup"
	"github.com/bsekhosana/sechat-app-sub011/delivery"
	"github.com/bsekhosana/sechat-app-sub011/domain/chat"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
	"github.com/bsekhosana/sechat-app-sub011/syncer"
)

// EventStream is the inbound side of the gateway as the engine sees it.
type EventStream interface {
	Events() <-chan event.GatewayEvent
}

// Engine drains the gateway's inbound stream and the loop's task queue
// from one goroutine. That ordering guarantee is what lets every
// downstream component stay lock-free: events for a conversation are
// applied in wire-arrival order and handlers never interleave.
type Engine struct {
	log     *slog.Logger
	loop    *Loop
	stream  EventStream
	cache   *dedup.Cache
	tracker *delivery.Tracker
	syncer  *syncer.Syncer
	selfID  string
}

func NewEngine(log *slog.Logger, loop *Loop, stream EventStream, cache *dedup.Cache,
	tracker *delivery.Tracker, sync *syncer.Syncer, selfID string) *Engine {
	e := &Engine{
		log:     log,
		loop:    loop,
		stream:  stream,
		cache:   cache,
		tracker: tracker,
		syncer:  sync,
		selfID:  selfID,
	}
	tracker.OnTransition(sync.ApplyTransition)
	return e
}

// Run executes the event-processing loop until the context is canceled.
// It satisfies contract.Worker so the supervisor owns its lifecycle.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("Engine event loop started", "sessionId", e.selfID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.loop.Tasks():
			fn()
		case evt := <-e.stream.Events():
			e.handle(ctx, evt)
		}
	}
}

// Submit queues an outgoing text message from the UI thread onto the
// engine loop. The message id is assigned here and survives every retry.
func (e *Engine) Submit(recipientID, body string, contentType chat.ContentType) string {
	msg := chat.NewMessage(e.selfID, recipientID, body, contentType)
	e.loop.Post(func() {
		e.syncer.RecordOutgoing(msg)
		e.tracker.Submit(msg)
	})
	return msg.ID
}

// MarkConversationRead zeroes the unread counter for a thread the user
// just opened.
func (e *Engine) MarkConversationRead(conversationID string) {
	e.loop.Post(func() {
		e.syncer.MarkConversationRead(conversationID)
	})
}

// handle routes one decoded inbound event. Receipt-style events pass the
// dedup gate first so an at-least-once transport can never apply the same
// transition or unread increment twice.
func (e *Engine) handle(ctx context.Context, evt event.GatewayEvent) {
	now := time.Now().UTC()

	switch ev := evt.(type) {
	case event.SessionRegistered:
		e.log.Info("Session registered with relay", "sessionId", ev.SessionID)

	case event.MessageReceived:
		if !e.cache.AddIfNew("recv:" + ev.MessageID) {
			e.log.Debug("Duplicate inbound message absorbed", "messageId", ev.MessageID)
			return
		}
		e.syncer.HandleMessage(ctx, ev, now)

	case event.MessageAcked:
		if !e.cache.AddIfNew("ack:" + ev.MessageID) {
			return
		}
		e.tracker.MarkAcked(ev.MessageID)

	case event.ReceiptDelivered:
		if !e.cache.AddIfNew("delivered:" + ev.MessageID) {
			e.log.Debug("Duplicate delivery receipt absorbed", "messageId", ev.MessageID)
			return
		}
		e.tracker.MarkDelivered(ev.MessageID, now)

	case event.ReceiptRead:
		if !e.cache.AddIfNew("read:" + ev.MessageID) {
			return
		}
		e.tracker.MarkRead(ev.MessageID, now)

	case event.TypingStatus:
		e.syncer.HandleTyping(ev, now)

	case event.PresenceUpdate:
		e.syncer.HandlePresence(ev)

	case event.KeyExchange:
		// Key negotiation is owned by the crypto collaborator; the engine
		// only logs the notification.
		e.log.Debug("Key exchange notification", "senderId", ev.SenderID)

	case event.ConversationDeleted:
		e.log.Info("Conversation deleted by peer", "conversationId", ev.ConversationID)

	case event.UserBlocked:
		e.log.Info("Blocked-by-user notice", "userId", ev.UserID)

	case event.UserDeleted:
		e.log.Info("User account deleted notice", "userId", ev.UserID)

	default:
		e.log.Debug("Unhandled gateway event", "event", evt.Name())
	}
}
