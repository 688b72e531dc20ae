package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/chat-realtime/internal/identity"
	"github.com/rickgao/chat-realtime/internal/metrics"
	"github.com/rickgao/chat-realtime/internal/protocol"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDialer replaces the transport factory.
func WithDialer(dial DialFunc) Option {
	return func(m *Manager) {
		if dial != nil {
			m.dial = dial
		}
	}
}

// WithMetrics records lifecycle and frame counters.
func WithMetrics(mc *metrics.Client) Option {
	return func(m *Manager) {
		m.metrics = mc
	}
}

// connState is one live transport and the attempt that produced it.
type connState struct {
	client Client
	gen    uint64
	stop   chan struct{}
	once   sync.Once
}

func (c *connState) close() {
	c.once.Do(func() {
		close(c.stop)
		c.client.Close()
	})
}

// Manager owns one realtime session: handshake, joined conversations,
// inbound buffer and reconnection. Create one per logical session.
type Manager struct {
	cfg     Config
	tokens  identity.Source
	dial    DialFunc
	logger  *slog.Logger
	metrics *metrics.Client

	mu            sync.Mutex
	state         State
	gen           uint64 // Bumped per attempt and on Disconnect
	conn          *connState
	cancelAttempt context.CancelFunc
	retryTimer    *time.Timer
	reconnect     reconnectState
	conversations *conversationSet
	messages      []InboundMessage
	dropped       int64

	observers    map[int]func(Event)
	nextObserver int
	pending      []Event
	dispatching  bool
}

// NewManager creates a Manager in StateDisconnected. Zero Config fields take
// DefaultConfig values. A nil tokens source behaves as signed out.
func NewManager(cfg Config, tokens identity.Source, opts ...Option) *Manager {
	m := &Manager{
		cfg:           cfg.withDefaults(),
		tokens:        tokens,
		dial:          Dial,
		logger:        slog.Default(),
		state:         StateDisconnected,
		conversations: newConversationSet(),
		observers:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "connection")
	return m
}

// Connect starts a session. It is a no-op while a session is live or being
// established. The returned error describes the first attempt only; State
// is authoritative, since failures are retried in the background.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateAuthenticating, StateConnected, StateReconnecting:
		m.mu.Unlock()
		return nil
	}
	m.reconnect.reset()
	gen := m.beginAttemptLocked()
	m.mu.Unlock()
	m.dispatch()

	return m.attempt(ctx, gen)
}

// Disconnect closes the session with code 1000 and cancels any pending
// retry or in-flight attempt. No reconnect follows.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	conn := m.conn
	m.conn = nil
	m.reconnect.reset()
	m.setStateLocked(StateDisconnected, nil)
	m.mu.Unlock()

	if conn != nil {
		conn.close()
	}
	m.logger.Info("disconnected")
	m.dispatch()
}

// SendChatMessage sends content to a conversation. When not connected the
// message is dropped and ErrNotConnected is returned.
func (m *Manager) SendChatMessage(content, conversationID string) (OutboundEnvelope, error) {
	env := OutboundEnvelope{
		ConversationID: conversationID,
		Content:        content,
	}
	err := m.Send(&env)
	return env, err
}

// Send sends a prepared envelope, filling ClientMessageID when empty.
func (m *Manager) Send(env *OutboundEnvelope) error {
	if env.ClientMessageID == "" {
		env.ClientMessageID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || m.conn == nil {
		m.logger.Debug("dropping chat message, not connected",
			"conversation_id", env.ConversationID,
			"state", m.state,
		)
		return ErrNotConnected
	}
	if err := m.sendLocked(protocol.Chat(env.ConversationID, env.Content, env.ClientMessageID)); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

// JoinConversation adds id to the joined set. The join frame is sent now if
// connected, otherwise on the next connected transition.
func (m *Manager) JoinConversation(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.conversations.add(id) {
		return
	}
	if m.state == StateConnected {
		if err := m.sendLocked(protocol.Join(id)); err != nil {
			m.logger.Warn("join send failed, will rejoin on reconnect",
				"conversation_id", id,
				"error", err,
			)
		}
	}
}

// LeaveConversation removes id from the joined set. The leave frame is only
// sent while connected.
func (m *Manager) LeaveConversation(id string) {
	id = strings.TrimSpace(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.conversations.remove(id) {
		return
	}
	if m.state == StateConnected {
		if err := m.sendLocked(protocol.Leave(id)); err != nil {
			m.logger.Warn("leave send failed", "conversation_id", id, "error", err)
		}
	}
}

// SetTyping sends a typing indicator for a joined conversation.
func (m *Manager) SetTyping(conversationID string, typing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	return m.sendLocked(protocol.Typing(conversationID, typing))
}

// IsConnected reports whether the session is authenticated and live.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Messages returns a copy of all inbound messages in receive order.
func (m *Manager) Messages() []InboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InboundMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Conversations returns joined conversation IDs in issue order.
func (m *Manager) Conversations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversations.list()
}

// Stats returns a snapshot of manager state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		State:         m.state,
		Attempt:       m.reconnect.attempt,
		LastAttemptAt: m.reconnect.lastAttemptAt,
		NextDelay:     m.reconnect.nextDelay,
		Conversations: m.conversations.len(),
		Messages:      len(m.messages),
		FramesDropped: m.dropped,
	}
}

// attempt runs one connection attempt for gen: token, dial, handshake.
func (m *Manager) attempt(parent context.Context, gen uint64) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return nil
	}
	m.cancelAttempt = cancel
	m.mu.Unlock()

	token, err := m.fetchToken(ctx)
	if errors.Is(err, identity.ErrNoSession) {
		m.logger.Info("no session, not connecting")
		m.abandon(gen, ErrNoCredential)
		return ErrNoCredential
	}
	if err != nil {
		err = fmt.Errorf("fetch token: %w", err)
		m.fail(gen, err)
		return err
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	client, err := m.dial(dialCtx, m.cfg.clientConfig(), m.logger)
	dialCancel()
	if err != nil {
		m.fail(gen, err)
		return err
	}

	if !m.transition(gen, StateAuthenticating) {
		client.Close()
		return nil
	}

	if err := m.handshake(ctx, client, token); err != nil {
		client.Close()
		m.fail(gen, err)
		return err
	}

	if !m.establish(gen, client) {
		client.Close()
	}
	return nil
}

func (m *Manager) fetchToken(ctx context.Context) (string, error) {
	if m.tokens == nil {
		return "", identity.ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.TokenTimeout)
	defer cancel()

	token, err := m.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(token) == "" {
		return "", identity.ErrNoSession
	}
	return token, nil
}

// handshake sends the auth frame and waits for the relay's verdict.
func (m *Manager) handshake(ctx context.Context, client Client, token string) error {
	data, err := protocol.Encode(protocol.Auth(token))
	if err != nil {
		return fmt.Errorf("encode auth: %w", err)
	}
	if err := client.Send(data); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	timer := time.NewTimer(m.cfg.HandshakeTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			return ErrHandshakeTimeout

		case err := <-client.Errors():
			if isAuthClose(err) {
				return fmt.Errorf("%w: %v", ErrAuthRejected, err)
			}
			return fmt.Errorf("handshake: %w", err)

		case msg := <-client.Messages():
			frame, err := protocol.Decode(msg.Data)
			if err != nil {
				m.countDropped("malformed")
				m.logger.Warn("dropping malformed frame during handshake", "error", err)
				continue
			}
			switch frame.Type {
			case protocol.TypeAuthOK:
				return nil
			case protocol.TypeAuthFailed:
				return fmt.Errorf("%w: %s", ErrAuthRejected, frame.Reason)
			default:
				m.logger.Debug("ignoring frame before auth ack", "type", frame.Type)
			}
		}
	}
}

// establish installs client as the live transport and flushes joins.
func (m *Manager) establish(gen uint64, client Client) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}

	conn := &connState{client: client, gen: gen, stop: make(chan struct{})}
	m.conn = conn
	m.cancelAttempt = nil
	m.reconnect.reset()
	m.setStateLocked(StateConnected, nil)

	for _, id := range m.conversations.list() {
		if err := m.sendLocked(protocol.Join(id)); err != nil {
			m.logger.Warn("rejoin failed", "conversation_id", id, "error", err)
			break
		}
	}
	joined := m.conversations.len()
	m.mu.Unlock()

	m.logger.Info("connected", "conversations", joined)
	go m.readLoop(conn)
	m.dispatch()
	return true
}

// readLoop consumes frames from one transport until it fails or is replaced.
func (m *Manager) readLoop(conn *connState) {
	for {
		select {
		case <-conn.stop:
			return

		case msg := <-conn.client.Messages():
			m.handleFrame(conn.gen, msg)

		case err := <-conn.client.Errors():
			// Frames read before the error are delivered first.
			for drained := false; !drained; {
				select {
				case msg := <-conn.client.Messages():
					m.handleFrame(conn.gen, msg)
				default:
					drained = true
				}
			}
			m.lost(conn, err)
			return
		}
	}
}

func (m *Manager) handleFrame(gen uint64, raw TimestampedMessage) {
	frame, err := protocol.Decode(raw.Data)
	if err != nil {
		m.countDropped("malformed")
		m.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	m.metrics.FrameReceived(frame.Type.String())

	var kind Kind
	switch frame.Type {
	case protocol.TypeChat:
		kind = KindChat
	case protocol.TypePresence, protocol.TypeTyping:
		kind = KindPresence
	case protocol.TypeSystem:
		kind = KindSystem
	case protocol.TypePong, protocol.TypeAuthOK:
		return
	case protocol.TypeError:
		m.logger.Warn("relay error", "code", frame.Code, "reason", frame.Reason)
		return
	default:
		m.metrics.FrameDropped("unknown_type")
		m.logger.Debug("ignoring frame", "type", frame.Type)
		return
	}

	ts := frame.Time()
	if ts.IsZero() {
		ts = raw.ReceivedAt
	}
	msg := InboundMessage{
		ID:              frame.MessageID,
		ConversationID:  frame.ConversationID,
		SenderID:        frame.SenderID,
		Content:         frame.Content,
		Status:          frame.Status,
		Timestamp:       ts,
		Kind:            kind,
		ClientMessageID: frame.ClientMessageID,
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.messages = append(m.messages, msg)
	m.emitLocked(Event{Type: EventMessage, Message: msg})
	m.mu.Unlock()

	m.dispatch()
}

// lost handles a transport failure that the caller did not initiate.
func (m *Manager) lost(conn *connState, cause error) {
	m.mu.Lock()
	if m.gen != conn.gen || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil

	if isNormalClose(cause) {
		m.gen++
		m.logger.Info("relay closed connection", "error", cause)
		m.setStateLocked(StateDisconnected, cause)
	} else {
		m.logger.Warn("connection lost", "error", cause)
		m.scheduleRetryLocked(cause)
	}
	m.mu.Unlock()

	conn.close()
	m.dispatch()
}

// fail records a failed attempt and schedules the next one.
func (m *Manager) fail(gen uint64, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.cancelAttempt = nil
	m.logger.Warn("connection attempt failed",
		"attempt", m.reconnect.attempt,
		"error", cause,
	)
	m.scheduleRetryLocked(cause)
	m.mu.Unlock()

	m.dispatch()
}

// abandon ends an attempt without retrying.
func (m *Manager) abandon(gen uint64, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.cancelAttempt = nil
	m.setStateLocked(StateDisconnected, cause)
	m.mu.Unlock()

	m.dispatch()
}

// scheduleRetryLocked arms one retry timer or gives up. Caller holds m.mu.
func (m *Manager) scheduleRetryLocked(cause error) {
	if m.reconnect.attempt >= m.cfg.MaxReconnectAttempts {
		m.gen++
		m.logger.Error("giving up on reconnect",
			"attempts", m.reconnect.attempt,
			"error", cause,
		)
		m.setStateLocked(StateClosed, fmt.Errorf("%w: %v", ErrReconnectExhausted, cause))
		return
	}

	delay := m.reconnect.schedule(m.cfg.ReconnectBaseWait, m.cfg.ReconnectMaxWait, time.Now())
	m.setStateLocked(StateReconnecting, cause)
	m.metrics.ReconnectScheduled()

	gen := m.gen
	m.retryTimer = time.AfterFunc(delay, func() { m.retry(gen) })

	m.logger.Info("reconnect scheduled",
		"attempt", m.reconnect.attempt,
		"delay", delay,
	)
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	next := m.beginAttemptLocked()
	m.mu.Unlock()
	m.dispatch()

	m.attempt(context.Background(), next)
}

// beginAttemptLocked starts a new generation in StateConnecting.
func (m *Manager) beginAttemptLocked() uint64 {
	m.gen++
	m.setStateLocked(StateConnecting, nil)
	return m.gen
}

func (m *Manager) transition(gen uint64, to State) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	m.setStateLocked(to, nil)
	m.mu.Unlock()

	m.dispatch()
	return true
}

func (m *Manager) setStateLocked(to State, cause error) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.metrics.StateChanged(string(to))
	m.logger.Debug("state changed", "from", from, "to", to)
	ev := Event{Type: EventStateChanged, From: from, To: to, Err: cause}
	if to == StateReconnecting {
		ev.Delay = m.reconnect.nextDelay
	}
	m.emitLocked(ev)
}

// sendLocked encodes and writes a frame on the live transport. Caller holds m.mu.
func (m *Manager) sendLocked(f protocol.Frame) error {
	if m.conn == nil {
		return ErrNotConnected
	}
	data, err := protocol.Encode(f)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.Type, err)
	}
	return m.conn.client.Send(data)
}

func (m *Manager) countDropped(reason string) {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
	m.metrics.FrameDropped(reason)
}
