package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"whatsapp-ai-bridge/internal/domain"
)

func TestLockerExclusive(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(newTestClient(t))

	token, err := locker.TryLock(ctx, "conv-1", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if _, err := locker.TryLock(ctx, "conv-1", time.Minute); !errors.Is(err, domain.ErrConversationBusy) {
		t.Fatalf("second lock: got %v", err)
	}

	// Different conversations lock independently.
	if _, err := locker.TryLock(ctx, "conv-2", time.Minute); err != nil {
		t.Fatalf("other conversation: %v", err)
	}

	if err := locker.Unlock(ctx, "conv-1", token); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := locker.TryLock(ctx, "conv-1", time.Minute); err != nil {
		t.Fatalf("relock after unlock: %v", err)
	}
}

func TestLockerUnlockNeedsMatchingToken(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(newTestClient(t))

	token, err := locker.TryLock(ctx, "conv-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	// A stale holder's token must not release the current lock.
	if err := locker.Unlock(ctx, "conv-1", "stale-token"); err != nil {
		t.Fatalf("Unlock with wrong token errored: %v", err)
	}
	if _, err := locker.TryLock(ctx, "conv-1", time.Minute); !errors.Is(err, domain.ErrConversationBusy) {
		t.Fatal("lock was released by a wrong token")
	}
	if err := locker.Unlock(ctx, "conv-1", token); err != nil {
		t.Fatal(err)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(newTestClient(t))

	key := EnqueueRateKey("conv-1")
	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("allow %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := limiter.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("limit not enforced")
	}

	// A different conversation has its own window.
	ok, err = limiter.Allow(ctx, EnqueueRateKey("conv-2"), 3, time.Minute)
	if err != nil || !ok {
		t.Fatalf("independent window: ok=%v err=%v", ok, err)
	}
}
