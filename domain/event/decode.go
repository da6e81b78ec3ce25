package event

import (
	"encoding/json"
	"fmt"

	"github.com/bsekhosana/sechat-app-sub011/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Decode turns a raw frame into its typed event. The payload is checked
// against the event's required fields and the decode fails closed: a frame
// carrying an unknown name or missing a required field yields an error and
// nothing else, so a malformed payload can never be half-applied downstream.
func Decode(f Frame) (GatewayEvent, error) {
	if f.Event == "" {
		return nil, fmt.Errorf("%w: empty event name", errors.ErrMalformedFrame)
	}
	if f.Data == nil {
		return nil, fmt.Errorf("%w: %s carries no payload", errors.ErrMalformedFrame, f.Event)
	}

	switch f.Event {
	case NameSessionRegistered:
		return decodeAs[SessionRegistered](f)
	case NameMessageReceived:
		return decodeAs[MessageReceived](f)
	case NameMessageAcked:
		return decodeAs[MessageAcked](f)
	case NameReceiptDelivered:
		return decodeAs[ReceiptDelivered](f)
	case NameReceiptRead:
		return decodeAs[ReceiptRead](f)
	case NameTypingStatus:
		return decodeAs[TypingStatus](f)
	case NamePresenceUpdate:
		return decodeAs[PresenceUpdate](f)
	case NameKeyExchange:
		return decodeAs[KeyExchange](f)
	case NameConversationGone:
		return decodeAs[ConversationDeleted](f)
	case NameUserBlocked:
		return decodeAs[UserBlocked](f)
	case NameUserDeleted:
		return decodeAs[UserDeleted](f)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownEvent, f.Event)
	}
}

func decodeAs[T GatewayEvent](f Frame) (GatewayEvent, error) {
	raw, err := json.Marshal(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrMalformedFrame, f.Event, err)
	}

	var out T
	if err = json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrMalformedFrame, f.Event, err)
	}

	if err = validate.Struct(out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrMalformedFrame, f.Event, err)
	}
	return out, nil
}
