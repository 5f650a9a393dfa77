// File: internal/infra/worker/stream_worker.go
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/adapter"
	"whatsapp-ai-bridge/internal/domain/ports/repository"
	"whatsapp-ai-bridge/internal/infra/logging"
	"whatsapp-ai-bridge/internal/infra/metrics"
)

// StreamWorkerConfig tunes one consuming process.
type StreamWorkerConfig struct {
	TickInterval time.Duration
	LockTTL      time.Duration
	HistoryLimit int
	DefaultModel string
}

// StreamWorker drains conversation logs. Each tick it discovers active
// conversations and submits one drain task per conversation to the pool; the
// conversation lock guarantees a single drainer per conversation across all
// processes, so entries are processed strictly in log order.
type StreamWorker struct {
	streamLog repository.StreamLog
	ledger    repository.JobLedger
	history   repository.HistoryRepository
	locker    repository.ConversationLocker
	ai        adapter.GenerationAdapter
	notifier  adapter.TransportNotifier
	consumer  string
	cfg       StreamWorkerConfig
	log       *zerolog.Logger
}

func NewStreamWorker(
	streamLog repository.StreamLog,
	ledger repository.JobLedger,
	history repository.HistoryRepository,
	locker repository.ConversationLocker,
	ai adapter.GenerationAdapter,
	notifier adapter.TransportNotifier,
	cfg StreamWorkerConfig,
	log *zerolog.Logger,
) *StreamWorker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 3 * time.Minute
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 15
	}
	return &StreamWorker{
		streamLog: streamLog,
		ledger:    ledger,
		history:   history,
		locker:    locker,
		ai:        ai,
		notifier:  notifier,
		consumer:  "worker-" + uuid.NewString()[:8],
		cfg:       cfg,
		log:       log,
	}
}

// Consumer is this process's consumer name within the shared group.
func (w *StreamWorker) Consumer() string { return w.consumer }

// Start runs the discovery loop until ctx is cancelled. Should be run in a
// goroutine.
func (w *StreamWorker) Start(ctx context.Context, pool *Pool) {
	w.log.Info().Str("consumer", w.consumer).Msg("stream worker started")
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stream worker stopping")
			return
		case <-ticker.C:
			convs, err := w.streamLog.ActiveConversations(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("conversation discovery failed")
				continue
			}
			metrics.SetActiveConversations(len(convs))
			for _, conv := range convs {
				conv := conv
				_ = pool.Submit(func(ctx context.Context) error {
					return w.drain(ctx, conv)
				})
			}
		}
	}
}

// Tick performs one synchronous discovery-and-drain pass. Used by callers
// that drive the worker themselves.
func (w *StreamWorker) Tick(ctx context.Context) error {
	convs, err := w.streamLog.ActiveConversations(ctx)
	if err != nil {
		return err
	}
	metrics.SetActiveConversations(len(convs))
	for _, conv := range convs {
		if err := w.drain(ctx, conv); err != nil {
			return err
		}
	}
	return nil
}

// drain processes a conversation's entries oldest-first until the log is
// empty or the next entry is gated by another consumer's claim.
func (w *StreamWorker) drain(ctx context.Context, conversationID string) error {
	ctx = logging.WithConvID(logging.WithWorkerID(ctx, w.consumer), conversationID)

	token, err := w.locker.TryLock(ctx, conversationID, w.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrConversationBusy) {
			return nil
		}
		return err
	}
	defer func() {
		if err := w.locker.Unlock(ctx, conversationID, token); err != nil {
			logging.With(ctx, w.log).Warn().Err(err).Msg("conversation unlock failed")
		}
	}()

	for {
		entry, err := w.streamLog.ClaimNext(ctx, conversationID, w.consumer)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNoEntry):
				return nil
			case errors.Is(err, domain.ErrClaimConflict):
				// Another consumer's live claim gates this conversation.
				metrics.IncClaimConflict()
				return nil
			default:
				return err
			}
		}
		if err := w.processEntry(ctx, entry); err != nil {
			// Leave the claim pending; the sweeper will recover it.
			return err
		}
	}
}

func (w *StreamWorker) processEntry(ctx context.Context, entry *model.StreamEntry) error {
	ctx = logging.WithJobID(ctx, entry.JobID)
	log := logging.With(ctx, w.log)

	job, err := w.ledger.Get(ctx, entry.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Entry references a rolled-back or expired job. Acknowledge so it
			// cannot wedge the conversation.
			log.Warn().Str("entry_id", entry.ID).Msg("orphaned entry acknowledged")
			return w.streamLog.Ack(ctx, entry.ConversationID, entry.ID)
		}
		return err
	}
	if job.Status.Terminal() {
		// Redelivered after a crash between terminal write and ack.
		return w.streamLog.Ack(ctx, entry.ConversationID, entry.ID)
	}
	redelivered := job.Status == model.JobStatusProcessing || len(job.Chunks) > 0
	if len(job.Chunks) > 0 {
		// Redelivery of a half-processed job; the new attempt starts from an
		// empty response.
		if err := w.ledger.ClearChunks(ctx, job.ID); err != nil {
			return err
		}
	}
	if err := w.ledger.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}

	msgs := w.buildMessages(ctx, job)
	if !redelivered {
		w.saveHistory(ctx, job.ConversationID, "user", job.Payload.HistoryText(), job.Payload)
	}

	var (
		out   strings.Builder
		index int
		start = time.Now()
	)
	usage, genErr := w.ai.GenerateStream(ctx, w.cfg.DefaultModel, msgs, func(delta string) error {
		chunk := model.ResponseChunk{Index: index, Content: delta, Timestamp: time.Now()}
		index++
		out.WriteString(delta)
		return w.ledger.AppendChunk(ctx, job.ID, chunk)
	})
	latency := time.Since(start)
	provider := guessProvider(w.cfg.DefaultModel)

	if genErr != nil {
		log.Error().Err(genErr).Msg("generation failed")
		if err := w.ledger.Fail(ctx, job.ID, genErr.Error()); err != nil {
			log.Error().Err(err).Msg("could not mark job failed")
		}
		if out.Len() > 0 {
			w.saveHistory(ctx, job.ConversationID, "assistant", "[partial] "+out.String(), model.Payload{})
		}
		metrics.IncJobProcessed("error", latency)
		metrics.ObserveGeneration(provider, w.cfg.DefaultModel, 0, 0, 0, int(latency/time.Millisecond), false)
		// Zero retries: the entry is acknowledged even on failure so one bad
		// job cannot wedge its conversation.
		return w.streamLog.Ack(ctx, entry.ConversationID, entry.ID)
	}

	if err := w.ledger.Complete(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("could not mark job complete")
	}
	w.saveHistory(ctx, job.ConversationID, "assistant", out.String(), model.Payload{})
	if err := w.notifier.Notify(ctx, job.ConversationID, out.String()); err != nil {
		// Delivery is best effort; the poll API still has the result.
		log.Warn().Err(err).Msg("notify failed")
	}

	metrics.IncJobProcessed("complete", latency)
	metrics.ObserveGeneration(provider, w.cfg.DefaultModel,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		int(latency/time.Millisecond), true)
	log.Info().Dur("duration", latency).Int("chunks", index).Msg("job processed")

	return w.streamLog.Ack(ctx, entry.ConversationID, entry.ID)
}

// buildMessages assembles recent history plus the job's own text, which is
// not yet part of the stored history at this point.
func (w *StreamWorker) buildMessages(ctx context.Context, job *model.Job) []adapter.Message {
	msgs := make([]adapter.Message, 0, w.cfg.HistoryLimit+1)
	hist, err := w.history.Recent(ctx, job.ConversationID, w.cfg.HistoryLimit)
	if err != nil {
		logging.With(ctx, w.log).Warn().Err(err).Msg("history fetch failed, generating without context")
	}
	for _, m := range hist {
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, adapter.Message{Role: "user", Content: job.Payload.HistoryText()})
}

func (w *StreamWorker) saveHistory(ctx context.Context, conversationID, role, content string, payload model.Payload) {
	if content == "" {
		return
	}
	msg := &model.HistoryMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		SenderJID:      payload.SenderJID,
		SenderName:     payload.SenderName,
	}
	if err := w.history.SaveMessage(ctx, msg); err != nil {
		logging.With(ctx, w.log).Warn().Err(err).Str("role", role).Msg("history save failed")
	}
}

func guessProvider(model string) string {
	switch {
	case strings.HasPrefix(strings.ToLower(model), "gemini"):
		return "gemini"
	case strings.HasPrefix(strings.ToLower(model), "gpt"):
		return "openai"
	default:
		return "default"
	}
}
