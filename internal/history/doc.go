// Package history stores chat messages accepted by the relay.
//
// Memory keeps the most recent messages per conversation. Postgres persists
// every message, and Writer batches inserts into Postgres while serving
// recent reads from an in-memory cache.
package history
