package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rickgao/chat-realtime/internal/history"
)

type ctxKey struct{}

// requireBearer verifies the Authorization header with the session verifier.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.verifier == nil {
			writeError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		claims, err := s.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims.Subject)))
	})
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: s.hub.len()})
}

// HistoryResponse is the body of GET /conversations/{id}/messages.
type HistoryResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []history.Message `json:"messages"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	conv := chi.URLParam(r, "id")

	limit := s.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > history.DefaultLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	requester, _ := r.Context().Value(ctxKey{}).(string)

	msgs, err := s.store.Recent(r.Context(), conv, limit)
	if err != nil {
		s.logger.Error("history query failed",
			"conversation_id", conv,
			"user_id", requester,
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, CodeHistoryUnavailable)
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{ConversationID: conv, Messages: msgs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
