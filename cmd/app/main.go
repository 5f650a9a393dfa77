// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/config"
	"whatsapp-ai-bridge/internal/domain/ports/adapter"
	aiAdapters "whatsapp-ai-bridge/internal/infra/adapters/ai"
	"whatsapp-ai-bridge/internal/infra/adapters/transport"
	"whatsapp-ai-bridge/internal/infra/api"
	pg "whatsapp-ai-bridge/internal/infra/db/postgres"
	"whatsapp-ai-bridge/internal/infra/logging"
	red "whatsapp-ai-bridge/internal/infra/redis"
	"whatsapp-ai-bridge/internal/infra/worker"
	"whatsapp-ai-bridge/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, readable logs)")
	flag.Parse()

	// Secrets come from the environment; .env is a dev convenience.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	historyRepo := pg.NewHistoryRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	ledger := red.NewJobLedger(redisClient, cfg.Queue.JobTTL)
	streamLog := red.NewStreamLog(redisClient, cfg.Queue.Group, cfg.Queue.ClaimTimeout)
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)
	prefsRepo := red.NewPrefsRepo(redisClient)

	// ---- AI adapters ----
	ai := buildAI(ctx, cfg, logger)

	// ---- Reply notifier ----
	var notifier adapter.TransportNotifier
	if cfg.Bridge.URL != "" {
		notifier, err = transport.NewWebhookNotifier(cfg.Bridge.URL, cfg.Bridge.Token)
		if err != nil {
			log.Fatalf("bridge notifier: %v", err)
		}
		logger.Info().Str("url", cfg.Bridge.URL).Msg("reply notifier: webhook")
	} else {
		notifier = transport.NewNoopNotifier(logger, cfg.Runtime.Dev)
		logger.Info().Msg("reply notifier: noop (polling only)")
	}

	// ---- Use cases ----
	enqueueUC := usecase.NewEnqueueUseCase(ledger, streamLog, rateLimiter, cfg.API.RatePerMin, logger)
	commandUC := usecase.NewCommandUseCase(prefsRepo, logger)
	statusUC := usecase.NewStatusUseCase(ledger, cfg.Queue.PollInterval, cfg.Queue.PollMaxWait, logger)

	// ---- Worker pool + stream consumer ----
	jobPool := worker.NewPool(cfg.Queue.Workers, logger)
	jobPool.Start(ctx)
	streamWorker := worker.NewStreamWorker(streamLog, ledger, historyRepo, locker, ai, notifier,
		worker.StreamWorkerConfig{
			TickInterval: cfg.Queue.TickInterval,
			LockTTL:      cfg.Queue.LockTTL,
			HistoryLimit: cfg.Queue.HistoryLimit,
			DefaultModel: cfg.AI.DefaultModel,
		}, logger)
	go streamWorker.Start(ctx, jobPool)
	logger.Info().Str("consumer", streamWorker.Consumer()).Int("workers", cfg.Queue.Workers).Msg("stream worker started")

	// ---- Recovery sweeper ----
	sweeper := worker.NewSweeper(streamLog, ledger, cfg.Queue.ClaimTimeout, cfg.Queue.SweepInterval, logger)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer sweeper.Stop()

	// ---- History retention ----
	go func() {
		retention := time.Duration(cfg.Queue.RetentionDays) * 24 * time.Hour
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := historyRepo.CleanupOld(ctx, retention)
				if err != nil {
					logger.Warn().Err(err).Msg("history cleanup failed")
					continue
				}
				logger.Info().Int64("deleted", n).Msg("history cleanup done")
			}
		}
	}()

	// ---- Public API ----
	apiSrv := api.NewServer(enqueueUC, commandUC, statusUC, cfg.API.MaxBodySize, logger)
	pubServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.API.Port), Handler: apiSrv.Router()}
	go func() {
		logger.Info().Str("addr", pubServer.Addr).Msg("api listening")
		if err := pubServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api server stopped")
		}
	}()

	// ---- Ops API ----
	auth := api.NewAuthManager(cfg.API.OpsSecret, 30*time.Minute)
	opsSrv := api.NewOpsServer(streamLog, sweeper, auth, logger)
	opsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.API.OpsPort), Handler: opsSrv.Router()}
	go func() {
		logger.Info().Str("addr", opsServer.Addr).Msg("ops listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = pubServer.Shutdown(shutCtx)
	_ = opsServer.Shutdown(shutCtx)
	jobPool.Stop()
}

// buildAI wires every configured provider behind the multi adapter and caps
// concurrent upstream calls at the worker count. Dev mode without keys falls
// back to the noop adapter so the pipeline can run offline.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) adapter.GenerationAdapter {
	providers := map[string]adapter.GenerationAdapter{}
	var order []string

	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		providers["openai"] = oa
		order = append(order, "openai")
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI provider: OpenAI")
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, "gemini-2.0-flash", 0)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		providers["gemini"] = ga
		order = append(order, "gemini")
		logger.Info().Msg("AI provider: Gemini")
	}

	if len(providers) == 0 {
		if !cfg.Runtime.Dev {
			log.Fatalf("no AI provider configured: set ai.openai_key or ai.gemini_key")
		}
		logger.Warn().Msg("AI provider: noop (dev)")
		return aiAdapters.NewNoopAIAdapter()
	}

	multi := aiAdapters.NewMultiAIAdapter(order[0], providers, nil, order)
	return aiAdapters.NewLimitedAI(multi, cfg.Queue.Workers)
}
