package repository

import (
	"context"
	"time"

	"whatsapp-ai-bridge/internal/domain/model"
)

// StreamLog is the ordered, append-only conversation log with grouped,
// acknowledged consumption. One logical log exists per conversation ID.
//
// Claim discipline: at most one unacknowledged claim per entry; within a
// conversation, entries are claimed and acknowledged in non-decreasing entry
// order. ClaimNext must honor that by never handing out entry N+1 while entry
// N is pending, regardless of which consumer holds the pending claim.
type StreamLog interface {
	// Append adds an entry referencing jobID and returns the log-assigned
	// entry ID.
	Append(ctx context.Context, conversationID, jobID string) (entryID string, err error)

	// ActiveConversations lists conversation IDs whose logs have unread or
	// pending entries.
	ActiveConversations(ctx context.Context) ([]string, error)

	// ClaimNext claims the oldest unacknowledged entry of a conversation for
	// the given consumer. It returns domain.ErrNoEntry when the log is
	// drained and domain.ErrClaimConflict when the oldest entry is held by a
	// live claim of another consumer.
	ClaimNext(ctx context.Context, conversationID, consumer string) (*model.StreamEntry, error)

	// Ack permanently marks an entry processed, unblocking the next entry of
	// its conversation.
	Ack(ctx context.Context, conversationID, entryID string) error

	// StaleClaims reports claimed-but-unacknowledged entries idle for at
	// least minIdle.
	StaleClaims(ctx context.Context, conversationID string, minIdle time.Duration) ([]model.PendingClaim, error)

	// Reclaim reassigns a stale claim to consumer, making the entry
	// deliverable again in its original position. Returns domain.ErrNoEntry
	// if the entry was acknowledged or re-claimed in the meantime.
	Reclaim(ctx context.Context, conversationID, entryID, consumer string, minIdle time.Duration) (*model.StreamEntry, error)

	// PendingCount returns the number of claimed-but-unacknowledged entries
	// of a conversation.
	PendingCount(ctx context.Context, conversationID string) (int64, error)
}
