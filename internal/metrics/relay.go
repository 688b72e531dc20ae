package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Relay records relay server activity.
type Relay struct {
	SessionsActive prometheus.Gauge
	Messages       *prometheus.CounterVec
	AuthFailures   prometheus.Counter
}

// NewRelay creates and registers relay collectors. A nil registerer skips
// registration.
func NewRelay(reg prometheus.Registerer) *Relay {
	r := &Relay{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_relay_sessions_active",
			Help: "Authenticated websocket sessions.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_relay_messages_total",
			Help: "Client frames handled by type.",
		}, []string{"type"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_relay_auth_failures_total",
			Help: "Handshakes rejected or timed out.",
		}),
	}

	if reg != nil {
		reg.MustRegister(r.SessionsActive, r.Messages, r.AuthFailures)
	}
	return r
}

// SessionOpened increments the active session gauge.
func (r *Relay) SessionOpened() {
	if r == nil {
		return
	}
	r.SessionsActive.Inc()
}

// SessionClosed decrements the active session gauge.
func (r *Relay) SessionClosed() {
	if r == nil {
		return
	}
	r.SessionsActive.Dec()
}

// MessageHandled counts a client frame.
func (r *Relay) MessageHandled(frameType string) {
	if r == nil {
		return
	}
	r.Messages.WithLabelValues(frameType).Inc()
}

// AuthFailed counts a rejected handshake.
func (r *Relay) AuthFailed() {
	if r == nil {
		return
	}
	r.AuthFailures.Inc()
}
