// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains one realtime WebSocket session per Manager instance
//   - Authenticates with a fresh bearer token as the first frame of every attempt
//   - Tracks joined conversations and re-joins them after every reconnect
//   - Buffers inbound chat, presence and system frames in receive order
//   - Reconnects with capped exponential backoff and stops in StateClosed
//     after the configured number of failed attempts
//
// Public operations never panic and failures surface as state transitions,
// observer events and logs, so callers can treat realtime chat as optional.
package connection
