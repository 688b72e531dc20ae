package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/chat-realtime/internal/history"
	"github.com/rickgao/chat-realtime/internal/identity"
	"github.com/rickgao/chat-realtime/internal/metrics"
	"github.com/rickgao/chat-realtime/internal/protocol"
)

// Errors
var (
	ErrHandshakeRequired = errors.New("first frame must be auth")
	ErrAuthTimeout       = errors.New("auth frame not received in time")
)

// Error codes sent in error frames.
const (
	CodeMalformed          = "malformed"
	CodeUnsupported        = "unsupported_type"
	CodeInvalid            = "invalid_request"
	CodeNotJoined          = "not_joined"
	CodeAlreadyAuthed      = "already_authenticated"
	CodeHistoryUnavailable = "history_unavailable"
)

// TokenVerifier validates bearer tokens. *identity.Verifier implements it.
type TokenVerifier interface {
	Verify(token string) (*identity.Claims, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records relay metrics and serves gatherer on Config.MetricsPath.
func WithMetrics(m *metrics.Relay, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// Server is the messaging relay.
type Server struct {
	cfg      Config
	verifier TokenVerifier
	store    history.Store
	hub      *hub
	logger   *slog.Logger
	metrics  *metrics.Relay
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	router   chi.Router
}

// NewServer creates a relay. A nil store keeps the last history.DefaultLimit
// messages per conversation in memory.
func NewServer(cfg Config, verifier TokenVerifier, store history.Store, opts ...Option) *Server {
	if store == nil {
		store = history.NewMemory(history.DefaultLimit)
	}
	s := &Server{
		cfg:      cfg.withDefaults(),
		verifier: verifier,
		store:    store,
		hub:      newHub(),
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "relay")
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	r.With(s.requireBearer).Get("/conversations/{id}/messages", s.handleHistory)
	if s.gatherer != nil {
		r.Handle(s.cfg.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the number of authenticated sessions.
func (s *Server) Sessions() int {
	return s.hub.len()
}

// Shutdown closes every live session with 1001 (going away) and waits for
// their cleanup. Clients reconnect; stop accepting connections first to keep
// them out.
func (s *Server) Shutdown(ctx context.Context) error {
	sessions := s.hub.all()
	for _, sess := range sessions {
		sess.close(websocket.CloseGoingAway, "relay shutting down")
	}

	for _, sess := range sessions {
		select {
		case <-sess.finished:
		case <-ctx.Done():
			return fmt.Errorf("wait for sessions: %w", ctx.Err())
		}
	}
	s.logger.Info("relay sessions closed", "count", len(sessions))
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxFrameBytes)

	claims, err := s.authenticate(conn)
	if err != nil {
		s.metrics.AuthFailed()
		s.logger.Info("auth failed", "remote", r.RemoteAddr, "error", err)
		s.reject(conn, err)
		return
	}

	sess := newSession(conn, claims.Subject, s.cfg, s.logger)
	s.hub.add(sess)
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	sess.send(protocol.Frame{
		Type:      protocol.TypeAuthOK,
		SenderID:  claims.Subject,
		Timestamp: time.Now().UnixMilli(),
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writeLoop()
	}()
	go sess.pingLoop(s.cfg.PingInterval)

	sess.logger.Info("session opened")
	s.readLoop(sess)

	s.cleanup(sess)
	sess.out.Close()
	sess.close(websocket.CloseNormalClosure, "")
	<-writerDone
	close(sess.finished)
	sess.logger.Info("session closed")
}

// authenticate reads the first frame and verifies its token.
func (s *Server) authenticate(conn *websocket.Conn) (*identity.Claims, error) {
	conn.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrAuthTimeout
		}
		return nil, fmt.Errorf("read auth frame: %w", err)
	}

	frame, err := protocol.Decode(data)
	if err != nil {
		return nil, err
	}
	if frame.Type != protocol.TypeAuth {
		return nil, ErrHandshakeRequired
	}
	if s.verifier == nil {
		return nil, errors.New("no token verifier configured")
	}
	return s.verifier.Verify(frame.Token)
}

// reject tells the client why and closes with 4001.
func (s *Server) reject(conn *websocket.Conn, cause error) {
	defer conn.Close()

	deadline := time.Now().Add(s.cfg.WriteWait)
	conn.SetWriteDeadline(deadline)

	reason := "invalid token"
	switch {
	case errors.Is(cause, ErrAuthTimeout):
		reason = "auth timeout"
	case errors.Is(cause, ErrHandshakeRequired):
		reason = "auth required"
	}

	if data, err := protocol.Encode(protocol.Frame{Type: protocol.TypeAuthFailed, Reason: reason}); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(protocol.CloseAuthFailed, reason),
		deadline,
	)
}

func (s *Server) readLoop(sess *session) {
	conn := sess.conn
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Debug("read failed", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		frame, err := protocol.Decode(data)
		if err != nil {
			sess.sendError(CodeMalformed, err.Error())
			continue
		}
		s.metrics.MessageHandled(frame.Type.String())
		s.handle(sess, frame)
	}
}

func (s *Server) handle(sess *session, f protocol.Frame) {
	switch f.Type {
	case protocol.TypeJoin:
		s.handleJoin(sess, f.ConversationID)
	case protocol.TypeLeave:
		s.handleLeave(sess, f.ConversationID)
	case protocol.TypeChat:
		s.handleChat(sess, f)
	case protocol.TypeTypingStart:
		s.setTyping(sess, f.ConversationID, true)
	case protocol.TypeTypingStop:
		s.setTyping(sess, f.ConversationID, false)
	case protocol.TypePing:
		sess.send(protocol.Frame{Type: protocol.TypePong, Timestamp: time.Now().UnixMilli()})
	case protocol.TypeAuth:
		sess.sendError(CodeAlreadyAuthed, "session already authenticated")
	default:
		sess.sendError(CodeUnsupported, fmt.Sprintf("unsupported frame type %q", f.Type))
	}
}

func (s *Server) handleJoin(sess *session, conv string) {
	if conv == "" {
		sess.sendError(CodeInvalid, "conversation_id required")
		return
	}
	if !s.hub.join(sess, conv) {
		return
	}
	s.hub.broadcast(conv, presence(conv, sess.userID, protocol.StatusJoined), sess)
	sess.logger.Debug("joined", "conversation_id", conv)
}

func (s *Server) handleLeave(sess *session, conv string) {
	if !s.hub.leave(sess, conv) {
		return
	}
	s.stopTyping(sess, conv)
	s.hub.broadcast(conv, presence(conv, sess.userID, protocol.StatusLeft), sess)
	sess.logger.Debug("left", "conversation_id", conv)
}

func (s *Server) handleChat(sess *session, f protocol.Frame) {
	conv := f.ConversationID
	content := strings.TrimSpace(f.Content)

	switch {
	case conv == "":
		sess.sendError(CodeInvalid, "conversation_id required")
		return
	case content == "":
		sess.sendError(CodeInvalid, "content required")
		return
	case len(content) > s.cfg.MaxContent:
		sess.sendError(CodeInvalid, fmt.Sprintf("content exceeds %d bytes", s.cfg.MaxContent))
		return
	case !s.hub.isMember(sess, conv):
		sess.sendError(CodeNotJoined, "join the conversation before sending")
		return
	}

	msg := history.Message{
		ID:              uuid.NewString(),
		ConversationID:  conv,
		SenderID:        sess.userID,
		Content:         content,
		ClientMessageID: f.ClientMessageID,
		CreatedAt:       time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteWait)
	err := s.store.Append(ctx, msg)
	cancel()
	if err != nil {
		sess.logger.Warn("history append failed", "conversation_id", conv, "error", err)
	}

	s.stopTyping(sess, conv)
	s.hub.broadcast(conv, protocol.Frame{
		Type:            protocol.TypeChat,
		ConversationID:  conv,
		SenderID:        msg.SenderID,
		Content:         msg.Content,
		MessageID:       msg.ID,
		ClientMessageID: msg.ClientMessageID,
		Timestamp:       msg.CreatedAt.UnixMilli(),
	}, nil)
}

func (s *Server) setTyping(sess *session, conv string, typing bool) {
	if !s.hub.isMember(sess, conv) {
		sess.sendError(CodeNotJoined, "join the conversation before typing")
		return
	}
	if sess.typing[conv] == typing {
		return
	}
	if typing {
		sess.typing[conv] = true
	} else {
		delete(sess.typing, conv)
	}
	s.hub.broadcast(conv, typingFrame(conv, sess.userID, typing), sess)
}

func (s *Server) stopTyping(sess *session, conv string) {
	if !sess.typing[conv] {
		return
	}
	delete(sess.typing, conv)
	s.hub.broadcast(conv, typingFrame(conv, sess.userID, false), sess)
}

// cleanup removes sess from every conversation and tells the others.
func (s *Server) cleanup(sess *session) {
	for _, conv := range s.hub.remove(sess) {
		if sess.typing[conv] {
			s.hub.broadcast(conv, typingFrame(conv, sess.userID, false), nil)
		}
		s.hub.broadcast(conv, presence(conv, sess.userID, protocol.StatusLeft), nil)
	}
	sess.typing = nil
}

func presence(conv, userID, status string) protocol.Frame {
	return protocol.Frame{
		Type:           protocol.TypePresence,
		ConversationID: conv,
		SenderID:       userID,
		Status:         status,
		Timestamp:      time.Now().UnixMilli(),
	}
}

func typingFrame(conv, userID string, typing bool) protocol.Frame {
	status := protocol.StatusStopped
	if typing {
		status = protocol.StatusStarted
	}
	return protocol.Frame{
		Type:           protocol.TypeTyping,
		ConversationID: conv,
		SenderID:       userID,
		Status:         status,
		Timestamp:      time.Now().UnixMilli(),
	}
}
