package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/chat-realtime/internal/protocol"
	"github.com/rickgao/chat-realtime/internal/queue"
)

// session is one authenticated WebSocket connection.
type session struct {
	id     string
	userID string
	conn   *websocket.Conn
	logger *slog.Logger

	out       *queue.Queue[[]byte]
	sendLimit int
	writeWait time.Duration

	done      chan struct{} // Closed by close
	finished  chan struct{} // Closed once the server has cleaned up
	closeOnce sync.Once

	// Conversations this session is typing in. Read loop only.
	typing map[string]bool
}

func newSession(conn *websocket.Conn, userID string, cfg Config, logger *slog.Logger) *session {
	id := uuid.NewString()
	return &session{
		id:        id,
		userID:    userID,
		conn:      conn,
		logger:    logger.With("session_id", id, "user_id", userID),
		out:       queue.New[[]byte](16),
		sendLimit: cfg.SendBuffer,
		writeWait: cfg.WriteWait,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		typing:    make(map[string]bool),
	}
}

func (s *session) send(f protocol.Frame) {
	data, err := protocol.Encode(f)
	if err != nil {
		s.logger.Error("encode frame", "type", f.Type, "error", err)
		return
	}
	s.enqueue(data)
}

func (s *session) sendError(code, reason string) {
	s.send(protocol.Frame{Type: protocol.TypeError, Code: code, Reason: reason})
}

// enqueue queues data for the write loop. A session that falls SendBuffer
// frames behind is closed so one slow reader cannot hold memory for the hub.
func (s *session) enqueue(data []byte) {
	if s.out.Len() >= s.sendLimit {
		s.logger.Warn("send buffer full, closing session", "queued", s.out.Len())
		s.close(protocol.CloseServerError, "send buffer overflow")
		return
	}
	s.out.Push(data)
}

// writeLoop drains the outbound queue until it is closed.
func (s *session) writeLoop() {
	for {
		data, ok := s.out.Pop()
		if !ok {
			return
		}
		s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug("write failed", "error", err)
			s.conn.Close()
			return
		}
	}
}

// pingLoop keeps the client's heartbeat fed until the session ends.
func (s *session) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.writeWait)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// close sends a close frame and tears down the connection. The read loop
// then exits and the server cleans up.
func (s *session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
	})
}
