package redis

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"whatsapp-ai-bridge/internal/domain"
)

func newTestLog(t *testing.T) *StreamLog {
	t.Helper()
	return NewStreamLog(newTestClient(t), "chat-workers", 2*time.Minute)
}

func TestStreamLogOrderedClaimAck(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	id1, err := log.Append(ctx, "conv-1", "job-1")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	id2, err := log.Append(ctx, "conv-1", "job-2")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("entry ids not increasing: %s then %s", id1, id2)
	}

	entry, err := log.ClaimNext(ctx, "conv-1", "w1")
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if entry.JobID != "job-1" {
		t.Fatalf("claimed %q, want job-1 first", entry.JobID)
	}

	// The unacknowledged claim gates the next entry for everyone.
	if _, err := log.ClaimNext(ctx, "conv-1", "w2"); !errors.Is(err, domain.ErrClaimConflict) {
		t.Fatalf("second claim past pending entry: got %v", err)
	}

	if err := log.Ack(ctx, "conv-1", entry.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	entry, err = log.ClaimNext(ctx, "conv-1", "w2")
	if err != nil {
		t.Fatalf("ClaimNext after ack: %v", err)
	}
	if entry.JobID != "job-2" {
		t.Fatalf("claimed %q, want job-2", entry.JobID)
	}
	if err := log.Ack(ctx, "conv-1", entry.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := log.ClaimNext(ctx, "conv-1", "w2"); !errors.Is(err, domain.ErrNoEntry) {
		t.Fatalf("drained log: got %v", err)
	}
}

func TestStreamLogResumesOwnPending(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	if _, err := log.Append(ctx, "conv-1", "job-1"); err != nil {
		t.Fatal(err)
	}
	first, err := log.ClaimNext(ctx, "conv-1", "w1")
	if err != nil {
		t.Fatal(err)
	}
	// Same consumer asking again gets its own unfinished entry back.
	again, err := log.ClaimNext(ctx, "conv-1", "w1")
	if err != nil {
		t.Fatalf("resume own pending: %v", err)
	}
	if again.ID != first.ID || again.JobID != "job-1" {
		t.Fatalf("resumed %+v, want %+v", again, first)
	}
}

func TestStreamLogReclaimRedeliversInPlace(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	if _, err := log.Append(ctx, "conv-1", "job-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := log.Append(ctx, "conv-1", "job-2"); err != nil {
		t.Fatal(err)
	}
	entry, err := log.ClaimNext(ctx, "conv-1", "dead-worker")
	if err != nil {
		t.Fatal(err)
	}

	// Sweeper transfers the stale claim to the recovery consumer.
	reclaimed, err := log.Reclaim(ctx, "conv-1", entry.ID, RecoveryConsumer, 0)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if reclaimed.JobID != "job-1" {
		t.Fatalf("reclaimed %q", reclaimed.JobID)
	}

	// A healthy worker picks the redelivered entry up before job-2.
	entry, err = log.ClaimNext(ctx, "conv-1", "w2")
	if err != nil {
		t.Fatalf("ClaimNext after reclaim: %v", err)
	}
	if entry.JobID != "job-1" {
		t.Fatalf("redelivery lost its position: got %q", entry.JobID)
	}

	// Reclaiming an entry that was since acknowledged reports ErrNoEntry.
	if err := log.Ack(ctx, "conv-1", entry.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := log.Reclaim(ctx, "conv-1", entry.ID, RecoveryConsumer, 0); !errors.Is(err, domain.ErrNoEntry) {
		t.Fatalf("reclaim of acked entry: got %v", err)
	}
}

func TestStreamLogStaleClaims(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	if _, err := log.Append(ctx, "conv-1", "job-1"); err != nil {
		t.Fatal(err)
	}
	entry, err := log.ClaimNext(ctx, "conv-1", "w1")
	if err != nil {
		t.Fatal(err)
	}

	stale, err := log.StaleClaims(ctx, "conv-1", 0)
	if err != nil {
		t.Fatalf("StaleClaims: %v", err)
	}
	if len(stale) != 1 || stale[0].EntryID != entry.ID || stale[0].Consumer != "w1" {
		t.Fatalf("stale claims: %+v", stale)
	}

	// Entries parked on the recovery consumer are not reported again.
	if _, err := log.Reclaim(ctx, "conv-1", entry.ID, RecoveryConsumer, 0); err != nil {
		t.Fatal(err)
	}
	stale, err = log.StaleClaims(ctx, "conv-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Fatalf("recovery-parked entries reported stale: %+v", stale)
	}
}

func TestStreamLogActiveConversations(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	if _, err := log.Append(ctx, "conv-a", "job-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := log.Append(ctx, "conv-b", "job-2"); err != nil {
		t.Fatal(err)
	}

	active, err := log.ActiveConversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(active)
	if len(active) != 2 || active[0] != "conv-a" || active[1] != "conv-b" {
		t.Fatalf("active: %v", active)
	}

	// Drain conv-a; it disappears from the active set.
	entry, err := log.ClaimNext(ctx, "conv-a", "w1")
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Ack(ctx, "conv-a", entry.ID); err != nil {
		t.Fatal(err)
	}
	active, err = log.ActiveConversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0] != "conv-b" {
		t.Fatalf("active after drain: %v", active)
	}
}

func TestStreamLogPendingCount(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	n, err := log.PendingCount(ctx, "conv-none")
	if err != nil || n != 0 {
		t.Fatalf("pending of unknown conversation: %d, %v", n, err)
	}

	if _, err := log.Append(ctx, "conv-1", "job-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := log.ClaimNext(ctx, "conv-1", "w1"); err != nil {
		t.Fatal(err)
	}
	n, err = log.PendingCount(ctx, "conv-1")
	if err != nil || n != 1 {
		t.Fatalf("pending: %d, %v", n, err)
	}
}
