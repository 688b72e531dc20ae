package history

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/chat-realtime/internal/queue"
)

// BatchStore is the durable side of a Writer. *Postgres implements it.
type BatchStore interface {
	InsertBatch(ctx context.Context, msgs []Message) (conflicts int, err error)
	Recent(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// WriterConfig controls batching.
type WriterConfig struct {
	BatchSize     int           // Flush when this many messages are pending
	FlushInterval time.Duration // Flush at least this often
	FlushTimeout  time.Duration // Bound on one batch insert
	CacheSize     int           // Recent messages kept in memory per conversation
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 500 * time.Millisecond,
		FlushTimeout:  5 * time.Second,
		CacheSize:     DefaultLimit,
	}
}

// WriterStats counts flush outcomes.
type WriterStats struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// Writer is a Store that caches recent messages in memory and persists them
// to a BatchStore in the background.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger
	db     BatchStore

	input *queue.Queue[Message]
	cache *Memory
	full  chan struct{}

	flushMu sync.Mutex // Serializes flushes

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   WriterStats
}

// NewWriter creates a Writer. Call Start before appending.
func NewWriter(cfg WriterConfig, db BatchStore, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = d.FlushTimeout
	}
	return &Writer{
		cfg:    cfg,
		logger: logger.With("component", "history_writer"),
		db:     db,
		input:  queue.New[Message](cfg.BatchSize),
		cache:  NewMemory(cfg.CacheSize),
		full:   make(chan struct{}, 1),
	}
}

// Start begins the flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("history writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop ends the flush loop and writes anything still pending.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping history writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("history writer stop timed out")
	}

	w.input.Close()
	w.flush()

	w.logger.Info("history writer stopped", "pending", w.input.Len())
	return nil
}

// Append caches msg and queues it for the next batch.
func (w *Writer) Append(ctx context.Context, msg Message) error {
	if err := w.cache.Append(ctx, msg); err != nil {
		return err
	}
	if !w.input.Push(msg) {
		w.logger.Warn("writer stopped, message not persisted", "id", msg.ID)
		return nil
	}
	if w.input.Len() >= w.cfg.BatchSize {
		select {
		case w.full <- struct{}{}:
		default:
		}
	}
	return nil
}

// Recent serves from the cache when it holds enough messages, otherwise it
// merges the durable store with messages not yet flushed.
func (w *Writer) Recent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	limit = normalizeLimit(limit)

	cached, _ := w.cache.Recent(ctx, conversationID, limit)
	if len(cached) >= limit {
		return cached, nil
	}

	stored, err := w.db.Recent(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	return merge(stored, cached, limit), nil
}

// Stats returns current counters.
func (w *Writer) Stats() WriterStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		case <-w.full:
			w.flush()
		}
	}
}

// flush writes pending messages in batches of BatchSize.
func (w *Writer) flush() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	for {
		batch := w.input.PopBatch(w.cfg.BatchSize)
		if len(batch) == 0 {
			return
		}

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.FlushTimeout)
		conflicts, err := w.db.InsertBatch(ctx, batch)
		cancel()

		w.statsMu.Lock()
		if err != nil {
			w.stats.Errors++
		} else {
			w.stats.Inserts += int64(len(batch) - conflicts)
			w.stats.Conflicts += int64(conflicts)
			w.stats.Flushes++
		}
		w.statsMu.Unlock()

		if err != nil {
			w.logger.Error("batch insert failed", "error", err, "count", len(batch))
			continue
		}
		w.logger.Debug("flushed messages",
			"count", len(batch),
			"conflicts", conflicts,
			"duration", time.Since(start),
		)
	}
}

// merge combines two oldest-first slices, dropping duplicate IDs, and keeps
// the newest limit messages.
func merge(stored, cached []Message, limit int) []Message {
	seen := make(map[string]struct{}, len(stored)+len(cached))
	out := make([]Message, 0, len(stored)+len(cached))
	for _, src := range [][]Message{stored, cached} {
		for _, m := range src {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
