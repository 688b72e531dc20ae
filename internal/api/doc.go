// Package api is the HTTP client for the relay's REST endpoints: health and
// conversation history. The realtime channel lives in internal/connection.
package api
