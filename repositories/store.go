package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"github.com/bsekhosana/sechat-app-sub011/domain/chat"
	"github.com/bsekhosana/sechat-app-sub011/errors"
)

const (
	conversationPrefix = "conv:"
	messagePrefix      = "msg:"
	messageRefPrefix   = "msgref:"
)

// Store persists conversations and messages in BadgerDB.
//
// Message keys are formatted as "msg:{conversation_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message id as a collision disconnector if
//     two messages arrive at the same nanosecond.
//
// A secondary "msgref:{id}" entry points back at the full key so delivery
// receipts can update a message without knowing its timestamp.
type Store struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewStore(db *badger.DB, log *slog.Logger, limitMessages *int) Store {
	return Store{db: db, log: log, limitMessages: limitMessages}
}

type diskConversation struct {
	ID                 string    `json:"id"`
	ParticipantAID     string    `json:"participantAId"`
	ParticipantBID     string    `json:"participantBId"`
	LastMessageID      string    `json:"lastMessageId"`
	LastMessagePreview string    `json:"lastMessagePreview"`
	LastMessageAt      time.Time `json:"lastMessageAt"`
	UnreadCount        int       `json:"unreadCount"`
}

type diskMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	RecipientID    string     `json:"recipientId"`
	ContentType    string     `json:"contentType"`
	Body           string     `json:"body"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// SaveConversation upserts the conversation record. Ephemeral presence and
// typing fields are deliberately not written; they are view state mirrored
// from the last event, never authoritative.
func (s Store) SaveConversation(c chat.Conversation) error {
	bytes, err := json.Marshal(fromConversation(c))
	if err != nil {
		return fmt.Errorf("marshal conversation %s: %w", c.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(conversationPrefix+c.ID), bytes)
	})
}

func (s Store) GetConversation(id string) (chat.Conversation, bool, error) {
	var disk diskConversation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(conversationPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err == badger.ErrKeyNotFound {
		return chat.Conversation{}, false, nil
	}
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return toConversation(disk), true, nil
}

func (s Store) ListConversations() ([]chat.Conversation, error) {
	var disks []diskConversation
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(conversationPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskConversation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			disks = append(disks, disk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(disks, func(d diskConversation, _ int) chat.Conversation {
		return toConversation(d)
	}), nil
}

// SaveMessage writes the message under its chronological key and the
// id-to-key reference used by status updates.
func (s Store) SaveMessage(m chat.Message) error {
	bytes, err := json.Marshal(fromMessage(m))
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", m.ID, err)
	}
	key := messageKey(m.ConversationID, m.CreatedAt, m.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), bytes); err != nil {
			return err
		}
		return txn.Set([]byte(messageRefPrefix+m.ID), []byte(key))
	})
}

// UpdateMessageStatus rewrites a stored message with its new delivery
// status. Unknown ids report ErrMessageMissing so callers can drop the
// update silently.
func (s Store) UpdateMessageStatus(messageID string, status chat.MessageStatus, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		refItem, err := txn.Get([]byte(messageRefPrefix + messageID))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", errors.ErrMessageMissing, messageID)
		}
		if err != nil {
			return err
		}

		var key []byte
		if err = refItem.Value(func(val []byte) error {
			key = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}

		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var disk diskMessage
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		}); err != nil {
			return err
		}

		msg := toMessage(disk)
		msg.ApplyStatus(status, at)

		bytes, err := json.Marshal(fromMessage(msg))
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
}

// GetMessages retrieves messages for a conversation using a reverse prefix
// scan. Thanks to the padded timestamp in the key, messages come back
// newest first; the returned cursor resumes the scan on the next page.
func (s Store) GetMessages(conversationID string, cursor *string) ([]chat.Message, *string, error) {
	var disks []diskMessage
	var lastKey string

	err := s.db.View(func(txn *badger.Txn) error {
		prefixStr := messagePrefix + conversationID + ":"
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if s.limitMessages != nil && len(disks) == *s.limitMessages {
				s.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *s.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])

			var disk diskMessage
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			disks = append(disks, disk)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := lo.Map(disks, func(d diskMessage, _ int) chat.Message {
		return toMessage(d)
	})
	return messages, &lastKey, nil
}

func messageKey(conversationID string, at time.Time, id string) string {
	return fmt.Sprintf("%s%s:%019d:%s", messagePrefix, conversationID, at.UnixNano(), id)
}

func fromConversation(c chat.Conversation) diskConversation {
	return diskConversation{
		ID:                 c.ID,
		ParticipantAID:     c.ParticipantAID,
		ParticipantBID:     c.ParticipantBID,
		LastMessageID:      c.LastMessageID,
		LastMessagePreview: c.LastMessagePreview,
		LastMessageAt:      c.LastMessageAt,
		UnreadCount:        c.UnreadCount,
	}
}

func toConversation(d diskConversation) chat.Conversation {
	return chat.Conversation{
		ID:                 d.ID,
		ParticipantAID:     d.ParticipantAID,
		ParticipantBID:     d.ParticipantBID,
		LastMessageID:      d.LastMessageID,
		LastMessagePreview: d.LastMessagePreview,
		LastMessageAt:      d.LastMessageAt,
		UnreadCount:        d.UnreadCount,
	}
}

func fromMessage(m chat.Message) diskMessage {
	return diskMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		ContentType:    string(m.ContentType),
		Body:           m.Body,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
}

func toMessage(d diskMessage) chat.Message {
	return chat.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		RecipientID:    d.RecipientID,
		ContentType:    chat.ContentType(d.ContentType),
		Body:           d.Body,
		Status:         chat.MessageStatus(d.Status),
		CreatedAt:      d.CreatedAt,
		DeliveredAt:    d.DeliveredAt,
		ReadAt:         d.ReadAt,
	}
}
