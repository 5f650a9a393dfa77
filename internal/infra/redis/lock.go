// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
)

var _ repository.ConversationLocker = (*Locker)(nil)

// Locker serializes conversation processing across worker processes with a
// SETNX lock. No retry loop: a busy conversation just means another worker is
// draining it, and the caller moves on to other work.
type Locker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *Locker {
	return &Locker{cli: c.cli}
}

func lockKey(conversationID string) string { return "conv_lock:" + conversationID }

func (l *Locker) TryLock(ctx context.Context, conversationID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, lockKey(conversationID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrConversationBusy
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *Locker) Unlock(ctx context.Context, conversationID, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{lockKey(conversationID)}, token).Result()
	return err
}
