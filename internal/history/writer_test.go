package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBatchStore records batches in memory.
type fakeBatchStore struct {
	mu      sync.Mutex
	batches [][]Message
	stored  []Message
	failing bool
}

func (f *fakeBatchStore) InsertBatch(ctx context.Context, msgs []Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errors.New("connection refused")
	}
	f.batches = append(f.batches, append([]Message(nil), msgs...))
	f.stored = append(f.stored, msgs...)
	return 0, nil
}

func (f *fakeBatchStore) Recent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.stored {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeBatchStore) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sizes []int
	for _, b := range f.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func TestWriter_FlushesOnBatchSize(t *testing.T) {
	db := &fakeBatchStore{}
	w := NewWriter(WriterConfig{BatchSize: 5, FlushInterval: time.Hour}, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	for i := 1; i <= 5; i++ {
		require.NoError(t, w.Append(context.Background(), msg("c1", i)))
	}

	require.Eventually(t, func() bool {
		return len(db.batchSizes()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{5}, db.batchSizes())
	assert.Equal(t, int64(5), w.Stats().Inserts)
}

func TestWriter_FlushesOnInterval(t *testing.T) {
	db := &fakeBatchStore{}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, w.Append(context.Background(), msg("c1", 1)))

	require.Eventually(t, func() bool {
		return w.Stats().Flushes == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWriter_StopFlushesPending(t *testing.T) {
	db := &fakeBatchStore{}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, db, nil)
	require.NoError(t, w.Start(context.Background()))

	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Append(context.Background(), msg("c1", i)))
	}
	require.NoError(t, w.Stop(context.Background()))

	assert.Equal(t, []int{3}, db.batchSizes())
}

func TestWriter_InsertErrorCounted(t *testing.T) {
	db := &fakeBatchStore{failing: true}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, db, nil)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Append(context.Background(), msg("c1", 1)))
	require.NoError(t, w.Stop(context.Background()))

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(0), stats.Inserts)

	// Cached copy is still readable.
	got, err := w.Recent(context.Background(), "c1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestWriter_RecentMergesStoredAndCached(t *testing.T) {
	db := &fakeBatchStore{stored: []Message{msg("c1", 1), msg("c1", 2)}}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, w.Append(context.Background(), msg("c1", 3)))

	got, err := w.Recent(context.Background(), "c1", 10)
	require.NoError(t, err)

	var ids []string
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"c1-1", "c1-2", "c1-3"}, ids)
}

func TestWriter_RecentFromCache(t *testing.T) {
	db := &fakeBatchStore{stored: []Message{msg("c1", 1)}}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, db, nil)

	require.NoError(t, w.Append(context.Background(), msg("c1", 2)))
	require.NoError(t, w.Append(context.Background(), msg("c1", 3)))

	got, err := w.Recent(context.Background(), "c1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1-2", got[0].ID)
}

func TestMerge(t *testing.T) {
	stored := []Message{msg("c1", 1), msg("c1", 2), msg("c1", 3)}
	cached := []Message{msg("c1", 3), msg("c1", 4)}

	got := merge(stored, cached, 3)

	require.Len(t, got, 3)
	assert.Equal(t, "c1-2", got[0].ID)
	assert.Equal(t, "c1-4", got[2].ID)
}
