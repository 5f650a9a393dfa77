package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
)

var _ repository.JobLedger = (*JobLedger)(nil)

// JobLedger keeps job records under job:meta:<id> (JSON) and their streamed
// output under job:chunks:<id> (list). Records live without expiry until the
// job turns terminal, then both keys get the configured TTL.
//
// Only the worker holding a job's claim mutates it, so read-modify-write on
// the meta key needs no CAS loop.
type JobLedger struct {
	client *Client
	ttl    time.Duration
}

func NewJobLedger(client *Client, ttl time.Duration) *JobLedger {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobLedger{client: client, ttl: ttl}
}

func metaKey(jobID string) string   { return "job:meta:" + jobID }
func chunksKey(jobID string) string { return "job:chunks:" + jobID }

func (l *JobLedger) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := l.client.cli.SetNX(ctx, metaKey(job.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (l *JobLedger) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := l.client.Get(ctx, metaKey(jobID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, err
	}

	raw, err := l.client.cli.LRange(ctx, chunksKey(jobID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for _, item := range raw {
		var c model.ResponseChunk
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			continue // skip unparseable chunk, keep the rest
		}
		job.Chunks = append(job.Chunks, c)
	}
	return &job, nil
}

func (l *JobLedger) MarkProcessing(ctx context.Context, jobID string) error {
	return l.transition(ctx, jobID, model.JobStatusProcessing, "")
}

func (l *JobLedger) Complete(ctx context.Context, jobID string) error {
	return l.transition(ctx, jobID, model.JobStatusComplete, "")
}

func (l *JobLedger) Fail(ctx context.Context, jobID, detail string) error {
	return l.transition(ctx, jobID, model.JobStatusError, detail)
}

func (l *JobLedger) transition(ctx context.Context, jobID string, next model.JobStatus, detail string) error {
	job, err := l.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == next {
		return nil // idempotent re-mark (redelivery)
	}
	if !job.Status.CanTransitionTo(next) {
		return domain.ErrStatusConflict
	}
	job.Status = next
	job.ErrorDetail = detail
	job.UpdatedAt = time.Now()
	if err := l.save(ctx, job); err != nil {
		return err
	}
	if next.Terminal() {
		if err := l.client.Expire(ctx, metaKey(jobID), l.ttl); err != nil {
			return err
		}
		return l.client.cli.Expire(ctx, chunksKey(jobID), l.ttl).Err()
	}
	return nil
}

func (l *JobLedger) AppendChunk(ctx context.Context, jobID string, chunk model.ResponseChunk) error {
	job, err := l.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusProcessing {
		return domain.ErrStatusConflict
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if err := l.client.cli.RPush(ctx, chunksKey(jobID), data).Err(); err != nil {
		return err
	}
	job.UpdatedAt = time.Now()
	return l.save(ctx, job)
}

func (l *JobLedger) ClearChunks(ctx context.Context, jobID string) error {
	return l.client.Del(ctx, chunksKey(jobID))
}

func (l *JobLedger) Delete(ctx context.Context, jobID string) error {
	return l.client.Del(ctx, metaKey(jobID), chunksKey(jobID))
}

func (l *JobLedger) load(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := l.client.Get(ctx, metaKey(jobID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (l *JobLedger) save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	// Saves only happen before the terminal TTL is applied (transitions and
	// chunk appends on a live job), so a plain SET cannot clobber an expiry.
	return l.client.Set(ctx, metaKey(job.ID), data, 0)
}
