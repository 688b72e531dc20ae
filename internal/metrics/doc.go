// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Client connection state transitions and reconnect attempts
//   - Inbound frames by type and dropped frames by reason
//   - Relay sessions, relayed frames and authentication failures
//
// Collectors are registered on an injected prometheus.Registerer so tests and
// multiple managers in one process do not collide on the global registry.
package metrics
