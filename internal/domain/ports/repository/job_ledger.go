package repository

import (
	"context"

	"whatsapp-ai-bridge/internal/domain/model"
)

// JobLedger is the durable record of jobs and their lifecycle. All status
// writes are monotonic: an implementation must reject transitions that would
// move a job backwards (domain.ErrStatusConflict) and must expire records a
// bounded time after they turn terminal.
type JobLedger interface {
	// Create stores a new pending job. The record must be visible to Get
	// before the corresponding log entry is appended.
	Create(ctx context.Context, job *model.Job) error

	// Get returns the job with its accumulated chunks, or domain.ErrNotFound
	// for unknown/expired IDs.
	Get(ctx context.Context, jobID string) (*model.Job, error)

	MarkProcessing(ctx context.Context, jobID string) error
	AppendChunk(ctx context.Context, jobID string, chunk model.ResponseChunk) error

	// ClearChunks drops accumulated chunks. Used when a reclaimed job is
	// redelivered, so the second attempt starts from an empty response.
	ClearChunks(ctx context.Context, jobID string) error

	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, detail string) error

	// Delete removes the record immediately. Enqueue uses it to roll back a
	// job whose log append failed.
	Delete(ctx context.Context, jobID string) error
}
