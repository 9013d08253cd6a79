// File: cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ameeramer/personal-coacher/internal/config"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
	aiAdapters "github.com/ameeramer/personal-coacher/internal/infra/adapters/ai"
	pg "github.com/ameeramer/personal-coacher/internal/infra/db/postgres"
	"github.com/ameeramer/personal-coacher/internal/infra/logging"
	"github.com/ameeramer/personal-coacher/internal/infra/metrics"
	"github.com/ameeramer/personal-coacher/internal/infra/queue"
	red "github.com/ameeramer/personal-coacher/internal/infra/redis"
	"github.com/ameeramer/personal-coacher/internal/infra/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI when no key is set)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	presence := red.NewPresenceTracker(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool)
	convRepo := pg.NewConversationRepo(pool)
	toolRepo := pg.NewToolRepo(pool)

	// ---- AI adapter (OpenAI -> Gemini -> noop in dev) ----
	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case cfg.Runtime.Dev:
		ai = aiAdapters.NewNoopAIAdapter()
		logger.Warn().Msg("AI adapter: noop (dev mode, no provider key)")
	default:
		log.Fatalf("no AI provider configured: set ai.openai_key or ai.gemini_key in %s", *cfgPath)
	}

	// Provider reachability check; a bad key should surface at startup, not
	// on the first claimed job.
	if models, merr := ai.ListModels(ctx); merr != nil {
		logger.Warn().Err(merr).Msg("AI provider model listing failed")
	} else {
		logger.Info().Int("models", len(models)).Msg("AI provider reachable")
	}

	// ---- Job processor ----
	processor := worker.NewJobProcessor(jobRepo, convRepo, toolRepo, ai, presence, cfg.AI.DefaultModel, tm, logger)

	mux := asynq.NewServeMux()
	mux.Handle(queue.TaskTypeProcessJob, processor)

	srv := queue.NewServer(cfg)
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Error().Err(err).Msg("queue server stopped")
			cancel()
		}
	}()

	// ---- Stuck job sweep ----
	sweeper := worker.NewSweeper(jobRepo, convRepo, toolRepo, locker, cfg.Worker.StuckJobAge, cfg.Worker.SweepInterval, logger)
	go sweeper.Run(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	srv.Shutdown()
	cancel()
}
