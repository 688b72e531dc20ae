package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPostgres connects to CHAT_TEST_POSTGRES_URL or skips.
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()

	url := os.Getenv("CHAT_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("CHAT_TEST_POSTGRES_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	p := NewPostgres(pool)
	require.NoError(t, p.EnsureSchema(ctx))
	return p
}

func TestPostgres_AppendAndRecent(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()
	conv := "test-" + uuid.NewString()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Append(ctx, Message{
			ID:             uuid.NewString(),
			ConversationID: conv,
			SenderID:       "u1",
			Content:        string(rune('a' + i)),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := p.Recent(ctx, conv, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Content)
	assert.Equal(t, "c", got[1].Content)
}

func TestPostgres_InsertBatchConflicts(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	m := Message{
		ID:             uuid.NewString(),
		ConversationID: "test-" + uuid.NewString(),
		SenderID:       "u1",
		Content:        "hello",
		CreatedAt:      time.Now().UTC(),
	}

	conflicts, err := p.InsertBatch(ctx, []Message{m, m})
	require.NoError(t, err)
	assert.Equal(t, 1, conflicts)
}

func TestPostgres_RejectsEmptyConversation(t *testing.T) {
	p := NewPostgres(nil)
	assert.ErrorIs(t, p.Append(context.Background(), Message{ID: "x"}), ErrEmptyConversation)
}
