package repositories

import (
	"circle-hub/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// MessageRepository is the durable message store.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID            uuid.UUID         `json:"id"`
	RoomID        string            `json:"room_id"`
	SenderID      string            `json:"sender_id"`
	SenderName    string            `json:"sender_name"`
	Content       string            `json:"content"`
	Kind          string            `json:"kind"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CensoredWords []string          `json:"censored_words,omitempty"`
	At            time.Time         `json:"at"`
}

// Persist assigns the message id and timestamp and stores it.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) Persist(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now().UTC()

	key := timeKey(messagePrefix(msg.RoomID), msg.CreatedAt.UnixNano(), msg.ID.String())
	err := m.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, fromMessage(msg))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// GetMessages retrieves the messages of a room, newest first, using a reverse prefix scan.
// The returned cursor is the position of the last message read; passing it back
// continues with older messages. It stops once limitMessages is reached.
func (m MessageRepository) GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := messagePrefix(roomID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Start after the newest possible key msg:{room}:9999999999999999999
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[prefixLen:]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				var disk DiskMessage
				if err := json.Unmarshal(value, &disk); err != nil {
					return err
				}
				messages = append(messages, toMessage(disk))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}

func messagePrefix(roomID domain.RoomID) string {
	return fmt.Sprintf("msg:%s:", roomID)
}

func fromMessage(msg domain.Message) DiskMessage {
	return DiskMessage{
		ID:            msg.ID,
		RoomID:        string(msg.RoomID),
		SenderID:      msg.SenderID,
		SenderName:    msg.SenderName,
		Content:       msg.Content,
		Kind:          string(msg.Kind),
		Metadata:      msg.Metadata,
		CensoredWords: msg.CensoredWords,
		At:            msg.CreatedAt,
	}
}

func toMessage(disk DiskMessage) domain.Message {
	return domain.Message{
		ID:            disk.ID,
		RoomID:        domain.RoomID(disk.RoomID),
		SenderID:      disk.SenderID,
		SenderName:    disk.SenderName,
		Content:       disk.Content,
		Kind:          domain.MessageKind(disk.Kind),
		Metadata:      disk.Metadata,
		CensoredWords: disk.CensoredWords,
		CreatedAt:     disk.At.UTC(),
	}
}
