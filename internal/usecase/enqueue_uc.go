// File: internal/usecase/enqueue_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
	"whatsapp-ai-bridge/internal/infra/logging"
	"whatsapp-ai-bridge/internal/infra/metrics"
)

// Compile-time check
var _ EnqueueUseCase = (*enqueueUC)(nil)

// RateLimiter caps enqueues per conversation over a fixed window.
type RateLimiter interface {
	AllowEnqueue(ctx context.Context, conversationID string, limit int, window time.Duration) (bool, error)
}

type EnqueueUseCase interface {
	// Submit records a pending job and appends it to the conversation's
	// ordered log. Both writes succeed or the enqueue is rolled back and
	// domain.ErrEnqueueFailed is returned.
	Submit(ctx context.Context, conversationID string, payload model.Payload) (*model.Job, error)
}

type enqueueUC struct {
	ledger     repository.JobLedger
	streamLog  repository.StreamLog
	limiter    RateLimiter
	ratePerMin int
	logger     *zerolog.Logger
}

func NewEnqueueUseCase(ledger repository.JobLedger, streamLog repository.StreamLog, limiter RateLimiter, ratePerMin int, logger *zerolog.Logger) *enqueueUC {
	return &enqueueUC{
		ledger:     ledger,
		streamLog:  streamLog,
		limiter:    limiter,
		ratePerMin: ratePerMin,
		logger:     logger,
	}
}

func (e *enqueueUC) Submit(ctx context.Context, conversationID string, payload model.Payload) (*model.Job, error) {
	defer logging.TraceDuration(e.logger, "EnqueueUC.Submit")()

	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.ErrInvalidArgument
	}
	payload.Text = strings.TrimSpace(payload.Text)
	if payload.Text == "" && !payload.HasImage && payload.DocumentName == "" {
		return nil, domain.ErrInvalidArgument
	}

	if e.limiter != nil && e.ratePerMin > 0 {
		ok, err := e.limiter.AllowEnqueue(ctx, conversationID, e.ratePerMin, time.Minute)
		if err != nil {
			// Fail open: a broken limiter must not take the queue down.
			logging.With(ctx, e.logger).Warn().Err(err).Msg("rate limiter check failed")
		} else if !ok {
			return nil, domain.ErrRateLimited
		}
	}

	job := model.NewJob(conversationID, payload)
	ctx = logging.WithJobID(logging.WithConvID(ctx, conversationID), job.ID)

	// Ledger first: the record must be pollable before the log entry can be
	// claimed.
	if err := e.ledger.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: create job: %v", domain.ErrEnqueueFailed, err)
	}

	entryID, err := e.streamLog.Append(ctx, conversationID, job.ID)
	if err != nil {
		// Roll back so a failed enqueue leaves no pending record that would
		// never be processed.
		if delErr := e.ledger.Delete(ctx, job.ID); delErr != nil {
			logging.With(ctx, e.logger).Error().Err(delErr).Msg("rollback of orphaned job failed")
		}
		return nil, fmt.Errorf("%w: append entry: %v", domain.ErrEnqueueFailed, err)
	}

	metrics.IncEnqueued()
	logging.With(ctx, e.logger).Info().Str("entry_id", entryID).Msg("job enqueued")
	return job, nil
}
