package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id                TEXT PRIMARY KEY,
	conversation_id   TEXT NOT NULL,
	sender_id         TEXT NOT NULL,
	content           TEXT NOT NULL,
	client_message_id TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_messages_conversation_created
	ON chat_messages (conversation_id, created_at DESC);
`

const insertMessage = `
	INSERT INTO chat_messages (id, conversation_id, sender_id, content, client_message_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING
`

// Postgres persists messages in the chat_messages table.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the table and index if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Append inserts one message. Duplicate IDs are ignored.
func (p *Postgres) Append(ctx context.Context, msg Message) error {
	if msg.ConversationID == "" {
		return ErrEmptyConversation
	}
	_, err := p.db.Exec(ctx, insertMessage,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.ClientMessageID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertBatch inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (p *Postgres) InsertBatch(ctx context.Context, msgs []Message) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(insertMessage,
			m.ID, m.ConversationID, m.SenderID, m.Content, m.ClientMessageID, m.CreatedAt)
	}

	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	for range msgs {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// Recent returns up to limit messages, oldest first.
func (p *Postgres) Recent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, conversation_id, sender_id, content, client_message_id, created_at
		FROM (
			SELECT * FROM chat_messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, conversationID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.ClientMessageID, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent: %w", err)
	}
	return msgs, nil
}
