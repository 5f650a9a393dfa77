package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"

	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
)

var _ repository.PreferencesRepository = (*PrefsRepo)(nil)

// PrefsRepo stores per-conversation settings as JSON. Preferences persist
// indefinitely; a conversation that never ran a command reads as defaults.
type PrefsRepo struct {
	client *Client
}

func NewPrefsRepo(client *Client) *PrefsRepo {
	return &PrefsRepo{client: client}
}

func prefsKey(conversationID string) string { return "conv_prefs:" + conversationID }

func (p *PrefsRepo) Get(ctx context.Context, conversationID string) (*model.Preferences, error) {
	data, err := p.client.Get(ctx, prefsKey(conversationID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.DefaultPreferences(), nil
		}
		return nil, err
	}
	var prefs model.Preferences
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (p *PrefsRepo) Set(ctx context.Context, conversationID string, prefs *model.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, prefsKey(conversationID), data, 0)
}
