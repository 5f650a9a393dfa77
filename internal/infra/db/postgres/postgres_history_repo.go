package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
)

var _ repository.HistoryRepository = (*historyRepo)(nil)

// historyRepo persists conversation exchanges.
//
// Schema:
//
//	CREATE TABLE conversation_messages (
//	    id              UUID PRIMARY KEY,
//	    conversation_id TEXT NOT NULL,
//	    role            TEXT NOT NULL,
//	    content         TEXT NOT NULL,
//	    sender_jid      TEXT NOT NULL DEFAULT '',
//	    sender_name     TEXT NOT NULL DEFAULT '',
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX idx_conv_messages_conv_time
//	    ON conversation_messages (conversation_id, created_at DESC);
type historyRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *historyRepo {
	return &historyRepo{pool: pool}
}

func (r *historyRepo) SaveMessage(ctx context.Context, msg *model.HistoryMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO conversation_messages (id, conversation_id, role, content, sender_jid, sender_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := r.pool.Exec(ctx, q,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.SenderJID, msg.SenderName, msg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *historyRepo) Recent(ctx context.Context, conversationID string, limit int) ([]model.HistoryMessage, error) {
	if limit <= 0 {
		limit = 15
	}
	const q = `
SELECT id, conversation_id, role, content, sender_jid, sender_name, created_at
FROM conversation_messages
WHERE conversation_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	rows, err := r.pool.Query(ctx, q, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.HistoryMessage
	for rows.Next() {
		var m model.HistoryMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.SenderJID, &m.SenderName, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first for prompt assembly.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *historyRepo) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	const q = `DELETE FROM conversation_messages WHERE created_at < $1;`
	tag, err := r.pool.Exec(ctx, q, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
