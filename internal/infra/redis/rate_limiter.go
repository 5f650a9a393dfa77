package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window INCR/EXPIRE counter, used to cap enqueues per
// conversation.
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// AllowEnqueue applies the per-conversation enqueue window.
func (r *RateLimiter) AllowEnqueue(ctx context.Context, conversationID string, limit int, window time.Duration) (bool, error) {
	return r.Allow(ctx, EnqueueRateKey(conversationID), limit, window)
}

func EnqueueRateKey(conversationID string) string {
	return fmt.Sprintf("rate_limit:enqueue:%s", conversationID)
}
