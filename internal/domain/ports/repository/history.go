package repository

import (
	"context"
	"time"

	"whatsapp-ai-bridge/internal/domain/model"
)

// HistoryRepository persists conversation history. It is a collaborator of
// the queue core, not part of it: the Job record is never the conversation's
// permanent history.
type HistoryRepository interface {
	SaveMessage(ctx context.Context, msg *model.HistoryMessage) error
	Recent(ctx context.Context, conversationID string, limit int) ([]model.HistoryMessage, error)
	CleanupOld(ctx context.Context, retention time.Duration) (int64, error)
}
