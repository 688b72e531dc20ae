package history

import (
	"context"
	"sync"
)

// Memory keeps the last Size messages of each conversation.
type Memory struct {
	size int

	mu    sync.RWMutex
	convs map[string][]Message
}

// NewMemory creates a Memory store. size <= 0 uses DefaultLimit.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultLimit
	}
	return &Memory{
		size:  size,
		convs: make(map[string][]Message),
	}
}

// Append adds msg, evicting the oldest message when the conversation is full.
func (m *Memory) Append(ctx context.Context, msg Message) error {
	if msg.ConversationID == "" {
		return ErrEmptyConversation
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := append(m.convs[msg.ConversationID], msg)
	if len(msgs) > m.size {
		msgs = append([]Message(nil), msgs[len(msgs)-m.size:]...)
	}
	m.convs[msg.ConversationID] = msgs
	return nil
}

// Recent returns up to limit messages, oldest first.
func (m *Memory) Recent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.convs[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Len returns the number of retained messages for a conversation.
func (m *Memory) Len(conversationID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.convs[conversationID])
}
