// File: internal/infra/worker/sweeper.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
	"whatsapp-ai-bridge/internal/infra/logging"
	"whatsapp-ai-bridge/internal/infra/metrics"
	redisinfra "whatsapp-ai-bridge/internal/infra/redis"
)

// Sweeper recovers entries whose claims went stale because their worker
// crashed or hung past the claim timeout. Reclaimed entries are parked under
// the recovery consumer, preserving their position in the conversation; any
// live worker picks them up on its next drain.
type Sweeper struct {
	streamLog    repository.StreamLog
	ledger       repository.JobLedger
	claimTimeout time.Duration
	interval     time.Duration
	cron         *cron.Cron
	log          *zerolog.Logger
}

func NewSweeper(streamLog repository.StreamLog, ledger repository.JobLedger, claimTimeout, interval time.Duration, log *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		streamLog:    streamLog,
		ledger:       ledger,
		claimTimeout: claimTimeout,
		interval:     interval,
		log:          log,
	}
}

// Start schedules periodic sweeps until Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cron != nil {
		return nil
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		runCtx, cancel := context.WithTimeout(ctx, s.interval)
		defer cancel()
		if _, err := s.Sweep(runCtx); err != nil {
			s.log.Error().Err(err).Msg("sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Dur("interval", s.interval).Msg("recovery sweeper started")
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.log.Info().Msg("recovery sweeper stopped")
}

// Sweep scans every active conversation once and reclaims stale claims.
// Returns the number of entries recovered.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	convs, err := s.streamLog.ActiveConversations(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, conv := range convs {
		n, err := s.sweepConversation(ctx, conv)
		recovered += n
		if err != nil {
			// Keep sweeping the other conversations.
			logging.With(ctx, s.log).Error().Err(err).Str("conv_id", conv).Msg("conversation sweep failed")
		}
	}
	return recovered, nil
}

func (s *Sweeper) sweepConversation(ctx context.Context, conversationID string) (int, error) {
	stale, err := s.streamLog.StaleClaims(ctx, conversationID, s.claimTimeout)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, claim := range stale {
		entry, err := s.streamLog.Reclaim(ctx, conversationID, claim.EntryID, redisinfra.RecoveryConsumer, s.claimTimeout)
		if err != nil {
			if errors.Is(err, domain.ErrNoEntry) {
				// Acknowledged or taken over since the scan; nothing to do.
				continue
			}
			return recovered, err
		}

		// Drop the dead attempt's partial output so redelivery starts clean.
		if err := s.ledger.ClearChunks(ctx, entry.JobID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, s.log).Warn().Err(err).Str("job_id", entry.JobID).Msg("could not clear chunks of reclaimed job")
		}

		metrics.IncReclaimed()
		recovered++
		s.log.Info().
			Str("conv_id", conversationID).
			Str("entry_id", entry.ID).
			Str("job_id", entry.JobID).
			Str("dead_consumer", claim.Consumer).
			Dur("idle", claim.Idle).
			Msg("stale claim recovered")
	}
	return recovered, nil
}
