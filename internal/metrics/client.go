package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Client records connection manager activity.
type Client struct {
	// StateTransitions counts transitions by target state.
	StateTransitions *prometheus.CounterVec

	// ReconnectAttempts counts scheduled reconnects.
	ReconnectAttempts prometheus.Counter

	// FramesReceived counts decoded inbound frames by type.
	FramesReceived *prometheus.CounterVec

	// FramesDropped counts discarded inbound frames.
	// Labels: reason (malformed|unknown_type)
	FramesDropped *prometheus.CounterVec

	// Connected is 1 while the manager is connected.
	Connected prometheus.Gauge
}

// NewClient creates and registers client collectors. A nil registerer skips
// registration.
func NewClient(reg prometheus.Registerer) *Client {
	c := &Client{
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_client_state_transitions_total",
			Help: "Connection state transitions by target state.",
		}, []string{"state"}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_client_reconnect_attempts_total",
			Help: "Reconnect attempts scheduled after a lost or failed connection.",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_client_frames_received_total",
			Help: "Inbound frames by type.",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_client_frames_dropped_total",
			Help: "Inbound frames discarded by reason.",
		}, []string{"reason"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_client_connected",
			Help: "1 while the realtime connection is established.",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.StateTransitions, c.ReconnectAttempts, c.FramesReceived, c.FramesDropped, c.Connected)
	}
	return c
}

// StateChanged records a transition into state.
func (c *Client) StateChanged(state string) {
	if c == nil {
		return
	}
	c.StateTransitions.WithLabelValues(state).Inc()
	if state == "connected" {
		c.Connected.Set(1)
	} else {
		c.Connected.Set(0)
	}
}

// ReconnectScheduled records a scheduled reconnect.
func (c *Client) ReconnectScheduled() {
	if c == nil {
		return
	}
	c.ReconnectAttempts.Inc()
}

// FrameReceived records a decoded inbound frame.
func (c *Client) FrameReceived(frameType string) {
	if c == nil {
		return
	}
	c.FramesReceived.WithLabelValues(frameType).Inc()
}

// FrameDropped records a discarded inbound frame.
func (c *Client) FrameDropped(reason string) {
	if c == nil {
		return
	}
	c.FramesDropped.WithLabelValues(reason).Inc()
}
