package repository

import (
	"context"
	"time"
)

// ConversationLocker serializes processing within one conversation across
// worker processes. A held lock means exactly one consumer is draining that
// conversation; the TTL bounds how long a crashed worker can hold it.
type ConversationLocker interface {
	// TryLock returns a release token, or domain.ErrConversationBusy if the
	// lock is held elsewhere.
	TryLock(ctx context.Context, conversationID string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, conversationID, token string) error
}
