package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rickgao/chat-realtime/internal/history"
	"github.com/rickgao/chat-realtime/internal/relay"
)

// Health returns the relay's health summary.
func (c *Client) Health(ctx context.Context) (*relay.HealthResponse, error) {
	var resp relay.HealthResponse
	if err := c.get(ctx, "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns up to limit recent messages of a conversation, oldest
// first. limit <= 0 uses the relay's default page size.
func (c *Client) History(ctx context.Context, conversationID string, limit int) ([]history.Message, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp relay.HistoryResponse
	if err := c.get(ctx, "/conversations/"+url.PathEscape(conversationID)+"/messages", query, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}
