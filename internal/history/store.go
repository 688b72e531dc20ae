package history

import (
	"context"
	"errors"
	"time"
)

// DefaultLimit is the per-conversation retention of Memory and the default
// page size of Recent.
const DefaultLimit = 100

// ErrEmptyConversation is returned when a message has no conversation ID.
var ErrEmptyConversation = errors.New("conversation id required")

// Message is one accepted chat message.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	SenderID        string    `json:"sender_id"`
	Content         string    `json:"content"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store appends messages and returns the latest ones per conversation.
type Store interface {
	Append(ctx context.Context, msg Message) error
	// Recent returns up to limit messages, oldest first.
	Recent(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultLimit {
		return DefaultLimit
	}
	return limit
}
