package relay

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/chat-realtime/internal/protocol"
)

func testSession(userID string) *session {
	return newSession(nil, userID, DefaultConfig(), slog.Default())
}

func TestHub_JoinLeave(t *testing.T) {
	h := newHub()
	a, b := testSession("a"), testSession("b")
	h.add(a)
	h.add(b)

	assert.True(t, h.join(a, "c1"))
	assert.False(t, h.join(a, "c1"))
	assert.True(t, h.join(b, "c1"))
	assert.Equal(t, 2, h.members("c1"))
	assert.True(t, h.isMember(a, "c1"))

	assert.True(t, h.leave(a, "c1"))
	assert.False(t, h.leave(a, "c1"))
	assert.False(t, h.isMember(a, "c1"))

	assert.True(t, h.leave(b, "c1"))
	assert.Equal(t, 0, h.members("c1"))
	assert.Empty(t, h.convs, "empty conversations are dropped")
}

func TestHub_Remove(t *testing.T) {
	h := newHub()
	a := testSession("a")
	h.add(a)
	h.join(a, "c2")
	h.join(a, "c1")

	assert.Equal(t, []string{"c1", "c2"}, h.remove(a))
	assert.Equal(t, 0, h.len())
	assert.Nil(t, h.remove(a))
}

func TestHub_Broadcast(t *testing.T) {
	h := newHub()
	a, b, c := testSession("a"), testSession("b"), testSession("c")
	for _, s := range []*session{a, b, c} {
		h.add(s)
	}
	h.join(a, "c1")
	h.join(b, "c1")
	h.join(c, "other")

	n := h.broadcast("c1", protocol.Frame{Type: protocol.TypeSystem, Content: "hi"}, a)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, a.out.Len())
	assert.Equal(t, 0, c.out.Len())

	data, ok := b.out.TryPop()
	require.True(t, ok)
	f, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "hi", f.Content)

	assert.Equal(t, 2, h.broadcast("c1", protocol.Frame{Type: protocol.TypeSystem}, nil))
}
