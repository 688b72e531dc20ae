// Package relay implements the messaging gateway the connection manager
// talks to.
//
// Each WebSocket session must authenticate with an auth frame carrying a
// bearer token before anything else. Authenticated sessions join
// conversations, exchange chat messages and typing indicators, and receive
// presence updates for the conversations they belong to. Accepted chat
// messages are written to a history.Store and served over HTTP.
package relay
