// File: internal/usecase/status_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
	"whatsapp-ai-bridge/internal/infra/logging"
)

// Compile-time check
var _ StatusUseCase = (*statusUC)(nil)

// StatusView is the poll projection of a job. Response carries the chunks
// accumulated so far, so a processing job exposes its partial output.
type StatusView struct {
	JobID          string          `json:"job_id"`
	ConversationID string          `json:"conversation_id"`
	Status         model.JobStatus `json:"status"`
	Response       string          `json:"response,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type StatusUseCase interface {
	// GetStatus returns the current projection, or domain.ErrNotFound for
	// unknown and expired job IDs. Terminal results stay readable until the
	// ledger record expires; repeated polls of a terminal job are idempotent.
	GetStatus(ctx context.Context, jobID string) (*StatusView, error)

	// Await polls until the job turns terminal or the wall-clock bound
	// elapses, in which case the last view is returned together with
	// domain.ErrPollTimeout.
	Await(ctx context.Context, jobID string) (*StatusView, error)
}

type statusUC struct {
	ledger       repository.JobLedger
	pollInterval time.Duration
	pollMaxWait  time.Duration
	logger       *zerolog.Logger
}

func NewStatusUseCase(ledger repository.JobLedger, pollInterval, pollMaxWait time.Duration, logger *zerolog.Logger) *statusUC {
	return &statusUC{
		ledger:       ledger,
		pollInterval: pollInterval,
		pollMaxWait:  pollMaxWait,
		logger:       logger,
	}
}

func (s *statusUC) GetStatus(ctx context.Context, jobID string) (*StatusView, error) {
	job, err := s.ledger.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return viewOf(job), nil
}

func (s *statusUC) Await(ctx context.Context, jobID string) (*StatusView, error) {
	deadline := time.Now().Add(s.pollMaxWait)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last *StatusView
	for {
		view, err := s.GetStatus(ctx, jobID)
		if err != nil {
			return last, err
		}
		last = view
		if view.Status.Terminal() {
			return view, nil
		}
		if time.Now().After(deadline) {
			logging.With(ctx, s.logger).Debug().Str("job_id", jobID).Msg("poll wait elapsed")
			return last, domain.ErrPollTimeout
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
}

func viewOf(job *model.Job) *StatusView {
	return &StatusView{
		JobID:          job.ID,
		ConversationID: job.ConversationID,
		Status:         job.Status,
		Response:       job.ResponseText(),
		Error:          job.ErrorDetail,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}
