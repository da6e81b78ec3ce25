//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"github.com/bsekhosana/sechat-app-sub011/domain/chat"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ISocket is one live transport connection under the gateway.
type ISocket interface {
	ReadFrame(ctx context.Context) (event.Frame, error)
	WriteFrame(ctx context.Context, f event.Frame) error
	Close() error
}

// ISocketDialer opens a new socket to the realtime endpoint.
type ISocketDialer interface {
	Dial(ctx context.Context, endpoint string) (ISocket, error)
}

// IEmitter is the outbound half of the gateway, consumed by the delivery
// tracker. Emit fails fast when no transport is live so the tracker's own
// retry loop can re-attempt later.
type IEmitter interface {
	Emit(eventName string, payload map[string]any) error
}

// IDecryptor is the black-box decryption capability. It returns the decrypted
// payload document or an error; it never interprets the content.
type IDecryptor interface {
	Decrypt(ctx context.Context, blob string) (string, error)
}

// IConversationRepository persists conversations and their messages.
type IConversationRepository interface {
	SaveConversation(c chat.Conversation) error
	GetConversation(id string) (chat.Conversation, bool, error)
	ListConversations() ([]chat.Conversation, error)
	SaveMessage(m chat.Message) error
	UpdateMessageStatus(messageID string, status chat.MessageStatus, at time.Time) error
	GetMessages(conversationID string, cursor *string) ([]chat.Message, *string, error)
}

// INotifier is the UI collaborator sink. The engine calls it whenever a
// conversation needs a re-render or a message reaches terminal failure.
type INotifier interface {
	ConversationChanged(conversationID string)
	MessageFailed(messageID string)
}

// IScheduler posts work onto the engine's single event-processing context.
// After returns a cancel function; a canceled callback never runs.
type IScheduler interface {
	Post(fn func())
	After(d time.Duration, fn func()) (cancel func())
}
