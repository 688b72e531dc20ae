package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type identifies a frame.
type Type string

// Handshake frames.
const (
	TypeAuth       Type = "auth"
	TypeAuthOK     Type = "auth.ok"
	TypeAuthFailed Type = "auth.failed"
)

// Client commands.
const (
	TypeJoin        Type = "conversation.join"
	TypeLeave       Type = "conversation.leave"
	TypeTypingStart Type = "typing.start"
	TypeTypingStop  Type = "typing.stop"
	TypePing        Type = "ping"
)

// Events. TypeChat is also the client command for sending a message.
const (
	TypeChat     Type = "chat.message"
	TypePresence Type = "presence"
	TypeTyping   Type = "typing"
	TypeSystem   Type = "system"
	TypePong     Type = "pong"
	TypeError    Type = "error"
)

// Close codes in the private range (4000-4999).
const (
	CloseServerError = 4000
	CloseAuthFailed  = 4001
)

// Presence and typing status values.
const (
	StatusJoined  = "joined"
	StatusLeft    = "left"
	StatusStarted = "started"
	StatusStopped = "stopped"
)

var (
	ErrMalformed   = errors.New("malformed frame")
	ErrMissingType = errors.New("frame type is required")
)

// Frame is the single wire envelope. Fields are populated per Type.
type Frame struct {
	Type            Type   `json:"type"`
	Token           string `json:"token,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
	SenderID        string `json:"sender_id,omitempty"`
	Content         string `json:"content,omitempty"`
	MessageID       string `json:"message_id,omitempty"`
	ClientMessageID string `json:"client_message_id,omitempty"`
	Status          string `json:"status,omitempty"`
	Code            string `json:"code,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Timestamp       int64  `json:"ts,omitempty"` // Unix milliseconds
}

// String returns the string representation of the Type.
func (t Type) String() string {
	return string(t)
}

// IsKnown reports whether t is a frame type this package defines.
func (t Type) IsKnown() bool {
	switch t {
	case TypeAuth, TypeAuthOK, TypeAuthFailed,
		TypeJoin, TypeLeave, TypeTypingStart, TypeTypingStop, TypePing,
		TypeChat, TypePresence, TypeTyping, TypeSystem, TypePong, TypeError:
		return true
	default:
		return false
	}
}

// Time returns the frame timestamp, or the zero time when unset.
func (f Frame) Time() time.Time {
	if f.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(f.Timestamp)
}

// Decode parses a text frame. Unknown types decode successfully so callers
// can ignore them.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == "" {
		return Frame{}, ErrMissingType
	}
	return f, nil
}

// Encode serializes a frame.
func Encode(f Frame) ([]byte, error) {
	if f.Type == "" {
		return nil, ErrMissingType
	}
	return json.Marshal(f)
}

// Auth builds the handshake frame.
func Auth(token string) Frame {
	return Frame{Type: TypeAuth, Token: token}
}

// Join builds a conversation join command.
func Join(conversationID string) Frame {
	return Frame{Type: TypeJoin, ConversationID: conversationID}
}

// Leave builds a conversation leave command.
func Leave(conversationID string) Frame {
	return Frame{Type: TypeLeave, ConversationID: conversationID}
}

// Chat builds a chat message command.
func Chat(conversationID, content, clientMessageID string) Frame {
	return Frame{
		Type:            TypeChat,
		ConversationID:  conversationID,
		Content:         content,
		ClientMessageID: clientMessageID,
	}
}

// Typing builds a typing.start or typing.stop command.
func Typing(conversationID string, typing bool) Frame {
	t := TypeTypingStop
	if typing {
		t = TypeTypingStart
	}
	return Frame{Type: t, ConversationID: conversationID}
}

// Ping builds an application-level ping.
func Ping() Frame {
	return Frame{Type: TypePing, Timestamp: time.Now().UnixMilli()}
}
