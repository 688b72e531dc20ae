package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/chat-realtime/internal/connection"
	"github.com/rickgao/chat-realtime/internal/identity"
)

func (r *testRelay) manager(t *testing.T, userID string) *connection.Manager {
	t.Helper()
	m := connection.NewManager(connection.Config{
		URL:                  r.wsURL(),
		HandshakeTimeout:     2 * time.Second,
		ReconnectBaseWait:    20 * time.Millisecond,
		ReconnectMaxWait:     100 * time.Millisecond,
		MaxReconnectAttempts: 5,
	}, r.issuer.SourceFor(userID, userID))
	t.Cleanup(m.Disconnect)
	return m
}

func hasChat(m *connection.Manager, content string) bool {
	for _, msg := range m.Messages() {
		if msg.Kind == connection.KindChat && msg.Content == content {
			return true
		}
	}
	return false
}

func TestManagers_ChatThroughRelay(t *testing.T) {
	r := newTestRelay(t, Config{})
	alice := r.manager(t, "alice")
	bob := r.manager(t, "bob")

	// Joins issued before connecting are flushed on connect.
	alice.JoinConversation("c1")
	bob.JoinConversation("c1")

	require.NoError(t, alice.Connect(context.Background()))
	require.NoError(t, bob.Connect(context.Background()))
	require.Eventually(t, func() bool { return r.srv.hub.members("c1") == 2 }, 2*time.Second, 10*time.Millisecond)

	env, err := alice.SendChatMessage("hello bob", "c1")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hasChat(bob, "hello bob") }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return hasChat(alice, "hello bob") }, 2*time.Second, 10*time.Millisecond)

	for _, msg := range alice.Messages() {
		if msg.Kind == connection.KindChat {
			assert.Equal(t, env.ClientMessageID, msg.ClientMessageID)
			assert.Equal(t, "alice", msg.SenderID)
			assert.NotEmpty(t, msg.ID)
		}
	}
}

func TestManagers_TypingAndPresence(t *testing.T) {
	r := newTestRelay(t, Config{})
	alice := r.manager(t, "alice")
	bob := r.manager(t, "bob")

	require.NoError(t, alice.Connect(context.Background()))
	alice.JoinConversation("c1")
	require.Eventually(t, func() bool { return r.srv.hub.members("c1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Connect(context.Background()))
	bob.JoinConversation("c1")
	require.Eventually(t, func() bool { return r.srv.hub.members("c1") == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bob.SetTyping("c1", true))

	require.Eventually(t, func() bool {
		var joined, typing bool
		for _, msg := range alice.Messages() {
			if msg.Kind != connection.KindPresence || msg.SenderID != "bob" {
				continue
			}
			joined = joined || msg.Status == "joined"
			typing = typing || msg.Status == "started"
		}
		return joined && typing
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_ReconnectsAfterRelayShutdown(t *testing.T) {
	r := newTestRelay(t, Config{})
	alice := r.manager(t, "alice")
	bob := r.manager(t, "bob")
	alice.JoinConversation("c1")
	bob.JoinConversation("c1")

	require.NoError(t, alice.Connect(context.Background()))
	require.NoError(t, bob.Connect(context.Background()))
	require.Eventually(t, func() bool { return r.srv.hub.members("c1") == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.srv.Shutdown(ctx))

	// Going-away is not a clean close: both managers reconnect and rejoin.
	require.Eventually(t, func() bool {
		return alice.IsConnected() && bob.IsConnected() && r.srv.hub.members("c1") == 2
	}, 3*time.Second, 10*time.Millisecond)

	_, err := bob.SendChatMessage("still here", "c1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hasChat(alice, "still here") }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_RejectedTokenNeverConnects(t *testing.T) {
	r := newTestRelay(t, Config{})
	m := connection.NewManager(connection.Config{
		URL:                  r.wsURL(),
		ReconnectBaseWait:    10 * time.Millisecond,
		ReconnectMaxWait:     20 * time.Millisecond,
		MaxReconnectAttempts: 2,
	}, identity.Static("forged"))
	defer m.Disconnect()

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, connection.ErrAuthRejected)

	require.Eventually(t, func() bool { return m.State() == connection.StateClosed }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, r.srv.Sessions())
}
