// Package protocol defines the JSON text frames exchanged between chat clients
// and the relay.
//
// Handshake:
//   - client sends "auth" carrying the bearer token as its first frame
//   - relay answers "auth.ok" (with the resolved user id) or "auth.failed"
//     followed by a close with CloseAuthFailed
//
// After the handshake frames are typed conversation commands (join, leave,
// chat, typing, ping) and events (chat.message, presence, typing, system, pong).
package protocol
