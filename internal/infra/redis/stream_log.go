package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
)

var _ repository.StreamLog = (*StreamLog)(nil)

const streamKeyPrefix = "stream:conv:"

// RecoveryConsumer is the consumer name the sweeper parks reclaimed entries
// under. ClaimNext treats entries pending for it as immediately claimable.
const RecoveryConsumer = "recovery"

// StreamLog implements the ordered conversation log on Redis Streams: one
// stream per conversation, one consumer group shared by all workers.
//
// Acknowledged entries are XDEL'd, so a non-empty stream or a non-empty
// pending set both mean "this conversation has work". The pending entry list
// (PEL) is the claim table: XREADGROUP assigns a claim, XACK releases it,
// XCLAIM transfers it.
type StreamLog struct {
	client       *Client
	group        string
	claimTimeout time.Duration
}

func NewStreamLog(client *Client, group string, claimTimeout time.Duration) *StreamLog {
	if group == "" {
		group = "chat-workers"
	}
	if claimTimeout <= 0 {
		claimTimeout = 2 * time.Minute
	}
	return &StreamLog{client: client, group: group, claimTimeout: claimTimeout}
}

func streamKey(conversationID string) string { return streamKeyPrefix + conversationID }

// ensureGroup creates the consumer group from position 0, tolerating the
// group already existing.
func (s *StreamLog) ensureGroup(ctx context.Context, conversationID string) error {
	err := s.client.cli.XGroupCreateMkStream(ctx, streamKey(conversationID), s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *StreamLog) Append(ctx context.Context, conversationID, jobID string) (string, error) {
	if err := s.ensureGroup(ctx, conversationID); err != nil {
		return "", err
	}
	id, err := s.client.cli.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(conversationID),
		Values: map[string]interface{}{
			"job_id":          jobID,
			"conversation_id": conversationID,
		},
	}).Result()
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *StreamLog) ActiveConversations(ctx context.Context) ([]string, error) {
	var (
		active []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.cli.Scan(ctx, cursor, streamKeyPrefix+"*", 100).Result()
		if err != nil {
			return active, err // partial results over a crash
		}
		for _, key := range keys {
			n, err := s.client.cli.XLen(ctx, key).Result()
			if err != nil {
				continue
			}
			if n > 0 {
				active = append(active, strings.TrimPrefix(key, streamKeyPrefix))
			}
		}
		cursor = next
		if cursor == 0 {
			return active, nil
		}
	}
}

func (s *StreamLog) ClaimNext(ctx context.Context, conversationID, consumer string) (*model.StreamEntry, error) {
	if err := s.ensureGroup(ctx, conversationID); err != nil {
		return nil, err
	}

	// Resume our own unfinished claim first (process restart with the same
	// consumer name, or a claim transferred to us earlier).
	if entry, err := s.readGroup(ctx, conversationID, consumer, "0"); err != nil || entry != nil {
		return entry, err
	}

	// The oldest pending entry gates everything behind it: a conversation
	// never advances past an unacknowledged claim.
	pending, err := s.client.cli.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamKey(conversationID),
		Group:  s.group,
		Start:  "-",
		End:    "+",
		Count:  1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(pending) > 0 {
		oldest := pending[0]
		switch {
		case oldest.Consumer == RecoveryConsumer:
			return s.claim(ctx, conversationID, oldest.ID, consumer, 0)
		case oldest.Idle >= s.claimTimeout:
			// Stale claim of a dead consumer; take it over directly. MinIdle
			// makes the transfer race-safe when several workers try at once.
			return s.claim(ctx, conversationID, oldest.ID, consumer, s.claimTimeout)
		default:
			return nil, domain.ErrClaimConflict
		}
	}

	entry, err := s.readGroup(ctx, conversationID, consumer, ">")
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.ErrNoEntry
	}
	return entry, nil
}

func (s *StreamLog) readGroup(ctx context.Context, conversationID, consumer, from string) (*model.StreamEntry, error) {
	res, err := s.client.cli.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{streamKey(conversationID), from},
		Count:    1,
		Block:    -1, // never block; the worker loop has its own cadence
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	for _, stream := range res {
		for _, msg := range stream.Messages {
			return entryFromMessage(conversationID, msg), nil
		}
	}
	return nil, nil
}

func (s *StreamLog) claim(ctx context.Context, conversationID, entryID, consumer string, minIdle time.Duration) (*model.StreamEntry, error) {
	msgs, err := s.client.cli.XClaim(ctx, &redis.XClaimArgs{
		Stream:   streamKey(conversationID),
		Group:    s.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: []string{entryID},
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(msgs) == 0 {
		// Lost the transfer race, or the entry was acknowledged meanwhile.
		return nil, domain.ErrClaimConflict
	}
	return entryFromMessage(conversationID, msgs[0]), nil
}

func (s *StreamLog) Ack(ctx context.Context, conversationID, entryID string) error {
	key := streamKey(conversationID)
	if err := s.client.cli.XAck(ctx, key, s.group, entryID).Err(); err != nil {
		return err
	}
	// Drop the entry so stream length reflects outstanding work only.
	return s.client.cli.XDel(ctx, key, entryID).Err()
}

func (s *StreamLog) StaleClaims(ctx context.Context, conversationID string, minIdle time.Duration) ([]model.PendingClaim, error) {
	pending, err := s.client.cli.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamKey(conversationID),
		Group:  s.group,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var stale []model.PendingClaim
	for _, p := range pending {
		if p.Idle >= minIdle && p.Consumer != RecoveryConsumer {
			stale = append(stale, model.PendingClaim{
				EntryID:    p.ID,
				Consumer:   p.Consumer,
				Idle:       p.Idle,
				RetryCount: p.RetryCount,
			})
		}
	}
	return stale, nil
}

func (s *StreamLog) Reclaim(ctx context.Context, conversationID, entryID, consumer string, minIdle time.Duration) (*model.StreamEntry, error) {
	entry, err := s.claim(ctx, conversationID, entryID, consumer, minIdle)
	if errors.Is(err, domain.ErrClaimConflict) {
		return nil, domain.ErrNoEntry
	}
	return entry, err
}

func (s *StreamLog) PendingCount(ctx context.Context, conversationID string) (int64, error) {
	summary, err := s.client.cli.XPending(ctx, streamKey(conversationID), s.group).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || strings.Contains(err.Error(), "NOGROUP") {
			return 0, nil
		}
		return 0, err
	}
	return summary.Count, nil
}

func entryFromMessage(conversationID string, msg redis.XMessage) *model.StreamEntry {
	entry := &model.StreamEntry{ID: msg.ID, ConversationID: conversationID}
	if v, ok := msg.Values["job_id"].(string); ok {
		entry.JobID = v
	}
	return entry
}
