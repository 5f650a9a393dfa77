// File: cmd/worker/main.go
//
// Standalone consumer process. Runs the stream worker and the recovery
// sweeper without the public API, so the poll surface and the generation
// workload can scale independently. Any number of these may share one
// consumer group.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/config"
	"whatsapp-ai-bridge/internal/domain/ports/adapter"
	aiAdapters "whatsapp-ai-bridge/internal/infra/adapters/ai"
	"whatsapp-ai-bridge/internal/infra/adapters/transport"
	pg "whatsapp-ai-bridge/internal/infra/db/postgres"
	"whatsapp-ai-bridge/internal/infra/logging"
	red "whatsapp-ai-bridge/internal/infra/redis"
	"whatsapp-ai-bridge/internal/infra/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, readable logs)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	historyRepo := pg.NewHistoryRepo(pool)

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	ledger := red.NewJobLedger(redisClient, cfg.Queue.JobTTL)
	streamLog := red.NewStreamLog(redisClient, cfg.Queue.Group, cfg.Queue.ClaimTimeout)
	locker := red.NewLocker(redisClient)

	var ai adapter.GenerationAdapter
	switch {
	case cfg.AI.OpenAIKey != "" || cfg.AI.GeminiKey != "":
		ai = buildMulti(ctx, cfg, logger)
	case cfg.Runtime.Dev:
		logger.Warn().Msg("AI provider: noop (dev)")
		ai = aiAdapters.NewNoopAIAdapter()
	default:
		log.Fatalf("no AI provider configured: set ai.openai_key or ai.gemini_key")
	}

	var notifier adapter.TransportNotifier
	if cfg.Bridge.URL != "" {
		notifier, err = transport.NewWebhookNotifier(cfg.Bridge.URL, cfg.Bridge.Token)
		if err != nil {
			log.Fatalf("bridge notifier: %v", err)
		}
	} else {
		notifier = transport.NewNoopNotifier(logger, cfg.Runtime.Dev)
	}

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

	sweeper := worker.NewSweeper(streamLog, ledger, cfg.Queue.ClaimTimeout, cfg.Queue.SweepInterval, logger)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer sweeper.Stop()

	// Metrics and liveness only; the ops API proper lives in the app binary.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.API.OpsPort), Handler: mux}
	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = metricsServer.Shutdown(shutCtx)
	jobPool.Stop()
}

func buildMulti(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) adapter.GenerationAdapter {
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
	multi := aiAdapters.NewMultiAIAdapter(order[0], providers, nil, order)
	return aiAdapters.NewLimitedAI(multi, cfg.Queue.Workers)
}
