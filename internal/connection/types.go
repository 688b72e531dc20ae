package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrStaleConnection    = errors.New("connection stale (no ping)")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrNoCredential       = errors.New("no credential available")
	ErrAuthRejected       = errors.New("authentication rejected")
	ErrHandshakeTimeout   = errors.New("handshake timeout")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateConnected      State = "connected"
	StateReconnecting   State = "reconnecting"
	StateClosed         State = "closed" // Reconnect budget exhausted
)

// Kind classifies an inbound message.
type Kind string

const (
	KindChat     Kind = "chat"
	KindPresence Kind = "presence" // Join/leave and typing updates
	KindSystem   Kind = "system"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// InboundMessage is a decoded event delivered to the caller.
type InboundMessage struct {
	ID              string // Relay-assigned message id (chat only)
	ConversationID  string
	SenderID        string
	Content         string
	Status          string // Presence/typing status, empty for chat
	Timestamp       time.Time
	Kind            Kind
	ClientMessageID string // Echo of OutboundEnvelope.ClientMessageID
}

// OutboundEnvelope is a chat message pending send.
type OutboundEnvelope struct {
	ConversationID  string
	Content         string
	ClientMessageID string // Generated when empty
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://chat.example.com/ws)
	HandshakeTimeout time.Duration // WebSocket upgrade timeout
	PingInterval     time.Duration // Keepalive ping interval (0 disables heartbeat)
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// Config configures the Connection Manager.
type Config struct {
	URL                  string        // WebSocket URL of the messaging relay
	TokenTimeout         time.Duration // Bound on one credential fetch
	HandshakeTimeout     time.Duration // Dial + auth acknowledgment window
	ReconnectBaseWait    time.Duration // Delay before the first retry
	ReconnectMaxWait     time.Duration // Cap on the retry delay
	MaxReconnectAttempts int           // Failed attempts before StateClosed
	PingInterval         time.Duration
	PingTimeout          time.Duration
	WriteTimeout         time.Duration
	BufferSize           int // Per-transport inbound buffer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TokenTimeout:         10 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		ReconnectBaseWait:    1 * time.Second,
		ReconnectMaxWait:     30 * time.Second,
		MaxReconnectAttempts: 10,
		PingInterval:         30 * time.Second,
		PingTimeout:          60 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           256,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TokenTimeout <= 0 {
		c.TokenTimeout = d.TokenTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReconnectBaseWait <= 0 {
		c.ReconnectBaseWait = d.ReconnectBaseWait
	}
	if c.ReconnectMaxWait <= 0 {
		c.ReconnectMaxWait = d.ReconnectMaxWait
	}
	if c.ReconnectMaxWait < c.ReconnectBaseWait {
		c.ReconnectMaxWait = c.ReconnectBaseWait
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	return c
}

func (c Config) clientConfig() ClientConfig {
	return ClientConfig{
		URL:              c.URL,
		HandshakeTimeout: c.HandshakeTimeout,
		PingInterval:     c.PingInterval,
		PingTimeout:      c.PingTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}
}

// Stats is a snapshot of manager state.
type Stats struct {
	State         State
	Attempt       int           // Consecutive failed attempts
	LastAttemptAt time.Time     // When the last retry was scheduled
	NextDelay     time.Duration // Delay of the last scheduled retry
	Conversations int
	Messages      int
	FramesDropped int64
}
