// Package delivery tracks the lifecycle of every outgoing message from
// submission through server acknowledgment, delivery and read confirmation,
// with timeout-driven retry.
package delivery

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bsekhosana/sechat-app-sub011/contract"
	"github.com/bsekhosana/sechat-app-sub011/domain/chat"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
	"github.com/bsekhosana/sechat-app-sub011/errors"
)

const (
	DefaultAckTimeout = 10 * time.Second
	DefaultRetryDelay = 5 * time.Second

	// Retries were unbounded upstream; a finite cap keeps a dead link from
	// retrying forever and lets the UI show a terminal failure.
	DefaultMaxRetries = 4
)

// Record is the engine-internal tracking state for one in-flight message,
// distinct from the persisted message's status field.
type Record struct {
	Message    chat.Message
	State      chat.MessageStatus
	RetryCount int
	LastErr    error
}

// TransitionFunc observes every state change of a tracked message. It runs
// on the same event-processing context as the tracker itself.
type TransitionFunc func(msg chat.Message, state chat.MessageStatus)

// Tracker is the per-message state machine:
//
//	pending -> sent -> delivered -> read
//
// with failed reachable from pending or sent on timeout, and a retry loop
// feeding back into pending until the retry budget runs out.
//
// All methods must be called from the engine's single event-processing
// context; the tracker holds no locks of its own.
type Tracker struct {
	log        *slog.Logger
	emitter    contract.IEmitter
	scheduler  contract.IScheduler
	notifier   contract.INotifier
	onChange   TransitionFunc
	records    map[string]*Record
	ackCancels map[string]func()
	ackTimeout time.Duration
	retryDelay time.Duration
	maxRetries int
}

func NewTracker(log *slog.Logger, emitter contract.IEmitter, scheduler contract.IScheduler,
	notifier contract.INotifier, ackTimeout, retryDelay time.Duration, maxRetries int) *Tracker {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Tracker{
		log:        log,
		emitter:    emitter,
		scheduler:  scheduler,
		notifier:   notifier,
		records:    make(map[string]*Record),
		ackCancels: make(map[string]func()),
		ackTimeout: ackTimeout,
		retryDelay: retryDelay,
		maxRetries: maxRetries,
	}
}

// OnTransition registers the observer for state changes. The synchronizer
// uses it to persist status updates and request re-renders.
func (t *Tracker) OnTransition(fn TransitionFunc) {
	t.onChange = fn
}

// Submit starts tracking an outgoing message and immediately attempts
// transmission. A transmission failure is not terminal: the retry loop
// re-attempts once the gateway is usable again.
func (t *Tracker) Submit(msg chat.Message) {
	if _, exists := t.records[msg.ID]; exists {
		t.log.Warn("Message already tracked, ignoring duplicate submit", "messageId", msg.ID)
		return
	}
	t.records[msg.ID] = &Record{Message: msg, State: chat.StatusPending}
	t.transition(msg.ID, chat.StatusPending)
	t.transmit(msg.ID)
}

// Retry re-attempts transmission of an already tracked message. The message
// keeps its original id and creation time; only the retry counter moves.
func (t *Tracker) Retry(messageID string) {
	rec, ok := t.records[messageID]
	if !ok {
		return
	}
	if rec.State == chat.StatusDelivered || rec.State == chat.StatusRead {
		return
	}

	rec.RetryCount++
	if rec.RetryCount > t.maxRetries {
		rec.LastErr = errors.ErrRetriesExhausted
		t.log.Warn("Delivery retries exhausted",
			"messageId", messageID, "retries", rec.RetryCount-1)
		t.transition(messageID, chat.StatusFailed)
		t.notifier.MessageFailed(messageID)
		return
	}

	t.log.Debug("Retrying message transmission",
		"messageId", messageID, "attempt", rec.RetryCount)
	rec.State = chat.StatusPending
	t.transition(messageID, chat.StatusPending)
	t.transmit(messageID)
}

// MarkAcked records the server's transmit acknowledgment: pending -> sent.
// The acknowledgment timer keeps running until a delivery receipt arrives.
func (t *Tracker) MarkAcked(messageID string) {
	rec, ok := t.records[messageID]
	if !ok {
		t.log.Debug("Ack for untracked message dropped", "messageId", messageID)
		return
	}
	if rec.State != chat.StatusPending {
		return
	}
	rec.State = chat.StatusSent
	t.transition(messageID, chat.StatusSent)
}

// MarkDelivered applies an externally reported delivery receipt. It never
// downgrades an already read record, and a receipt for an unknown id is
// dropped silently: the tracker may have restarted or the message may have
// originated on another device.
func (t *Tracker) MarkDelivered(messageID string, at time.Time) {
	rec, ok := t.records[messageID]
	if !ok {
		t.log.Debug("Delivery receipt for untracked message dropped", "messageId", messageID)
		return
	}
	if rec.State == chat.StatusDelivered || rec.State == chat.StatusRead {
		return
	}
	t.stopAckTimer(messageID)
	rec.State = chat.StatusDelivered
	rec.Message.ApplyStatus(chat.StatusDelivered, at)
	t.transition(messageID, chat.StatusDelivered)
}

// MarkRead applies a read receipt. Read implies delivered even when the
// delivered receipt was missed.
func (t *Tracker) MarkRead(messageID string, at time.Time) {
	rec, ok := t.records[messageID]
	if !ok {
		t.log.Debug("Read receipt for untracked message dropped", "messageId", messageID)
		return
	}
	if rec.State == chat.StatusRead {
		return
	}
	t.stopAckTimer(messageID)
	rec.State = chat.StatusRead
	rec.Message.ApplyStatus(chat.StatusRead, at)
	t.transition(messageID, chat.StatusRead)
}

// Get returns the current tracking record, or false when the message is
// untracked or already purged.
func (t *Tracker) Get(messageID string) (Record, bool) {
	rec, ok := t.records[messageID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Purge drops a terminal record once the caller no longer needs the
// tombstone.
func (t *Tracker) Purge(messageID string) {
	t.stopAckTimer(messageID)
	delete(t.records, messageID)
}

// transmit emits the message and arms the acknowledgment timer. An emit
// failure (typically no live transport) skips the timer and goes straight
// to the retry delay.
func (t *Tracker) transmit(messageID string) {
	rec, ok := t.records[messageID]
	if !ok {
		return
	}

	payload := map[string]any{
		"toSessionId":    rec.Message.RecipientID,
		"conversationId": rec.Message.ConversationID,
		"messageId":      rec.Message.ID,
		"body":           rec.Message.Body,
	}
	if err := t.emitter.Emit(event.NameMessageSend, payload); err != nil {
		rec.LastErr = fmt.Errorf("transmit: %w", err)
		t.log.Debug("Transmission failed, retry scheduled",
			"messageId", messageID, "error", err)
		t.scheduleRetry(messageID)
		return
	}

	t.armAckTimer(messageID)
}

// armAckTimer starts the acknowledgment window. If it expires while the
// record is still pending or sent, the message fails and a retry is
// scheduled.
func (t *Tracker) armAckTimer(messageID string) {
	t.stopAckTimer(messageID)
	t.ackCancels[messageID] = t.scheduler.After(t.ackTimeout, func() {
		delete(t.ackCancels, messageID)
		rec, ok := t.records[messageID]
		if !ok {
			return
		}
		if rec.State != chat.StatusPending && rec.State != chat.StatusSent {
			return
		}
		rec.State = chat.StatusFailed
		rec.LastErr = fmt.Errorf("no delivery confirmation within %s", t.ackTimeout)
		t.log.Debug("Acknowledgment window expired", "messageId", messageID)
		t.transition(messageID, chat.StatusFailed)
		t.scheduleRetry(messageID)
	})
}

func (t *Tracker) scheduleRetry(messageID string) {
	t.scheduler.After(t.retryDelay, func() {
		t.Retry(messageID)
	})
}

func (t *Tracker) stopAckTimer(messageID string) {
	if cancel, ok := t.ackCancels[messageID]; ok {
		cancel()
		delete(t.ackCancels, messageID)
	}
}

func (t *Tracker) transition(messageID string, state chat.MessageStatus) {
	if t.onChange == nil {
		return
	}
	if rec, ok := t.records[messageID]; ok {
		t.onChange(rec.Message, state)
	}
}
