package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClient(reg)

	m.StateChanged("connecting")
	m.StateChanged("connected")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))

	m.StateChanged("reconnecting")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateTransitions.WithLabelValues("connected")))

	m.ReconnectScheduled()
	m.ReconnectScheduled()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconnectAttempts))

	m.FrameReceived("chat.message")
	m.FrameDropped("malformed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("chat.message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues("malformed")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilReceiversAreNoops(t *testing.T) {
	var c *Client
	var r *Relay

	assert.NotPanics(t, func() {
		c.StateChanged("connected")
		c.ReconnectScheduled()
		c.FrameReceived("chat.message")
		c.FrameDropped("malformed")
		r.SessionOpened()
		r.SessionClosed()
		r.MessageHandled("ping")
		r.AuthFailed()
	})
}

func TestRelayMetrics(t *testing.T) {
	m := NewRelay(prometheus.NewRegistry())

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.MessageHandled("chat.message")
	m.AuthFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("chat.message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewClient(reg)
	assert.Panics(t, func() { NewClient(reg) })
}
