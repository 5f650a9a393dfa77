package repository

import (
	"context"

	"whatsapp-ai-bridge/internal/domain/model"
)

// PreferencesRepository stores per-conversation settings touched by the
// command fast path.
type PreferencesRepository interface {
	Get(ctx context.Context, conversationID string) (*model.Preferences, error)
	Set(ctx context.Context, conversationID string, prefs *model.Preferences) error
}
