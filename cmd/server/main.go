// File: cmd/server/main.go
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

	"github.com/ameeramer/personal-coacher/internal/config"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
	"github.com/ameeramer/personal-coacher/internal/infra/adapters/push"
	"github.com/ameeramer/personal-coacher/internal/infra/api/apiv1"
	pg "github.com/ameeramer/personal-coacher/internal/infra/db/postgres"
	"github.com/ameeramer/personal-coacher/internal/infra/logging"
	"github.com/ameeramer/personal-coacher/internal/infra/metrics"
	"github.com/ameeramer/personal-coacher/internal/infra/queue"
	red "github.com/ameeramer/personal-coacher/internal/infra/redis"
	"github.com/ameeramer/personal-coacher/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop adapters where keys are missing)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

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
	rateLimiter := red.NewRateLimiter(redisClient)
	presence := red.NewPresenceTracker(redisClient)

	// ---- Queue ----
	jobQueue := queue.NewAsynqQueue(cfg)
	defer jobQueue.Close()

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool)
	convRepo := pg.NewConversationRepo(pool)
	toolRepo := pg.NewToolRepo(pool)
	subRepo := pg.NewPushSubscriptionRepo(pool)

	// ---- Push dispatcher ----
	var dispatcher adapter.PushDispatcher
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		dispatcher, err = push.NewWebPushDispatcher(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
		if err != nil {
			log.Fatalf("webpush: %v", err)
		}
	} else if cfg.Runtime.Dev {
		logger.Warn().Msg("push keys missing; using noop dispatcher")
		dispatcher = push.NewNoopDispatcher()
	} else {
		log.Fatalf("push: vapid keys are required outside dev mode")
	}

	// ---- Use cases ----
	chatUC := usecase.NewChatUseCase(convRepo, jobRepo, jobQueue, tm, logger)
	toolUC := usecase.NewToolUseCase(toolRepo, jobRepo, jobQueue, tm, logger)
	jobUC := usecase.NewJobUseCase(jobRepo)
	pushUC := usecase.NewPushUseCase(subRepo, dispatcher)
	notifUC := usecase.NewNotificationUseCase(jobRepo, subRepo, dispatcher, logger)

	// ---- HTTP ----
	srv := apiv1.NewServer(apiv1.ServerDeps{
		Chat:          chatUC,
		Tools:         toolUC,
		Jobs:          jobUC,
		Push:          pushUC,
		Notifications: notifUC,
		Limiter:       rateLimiter,
		RatePerMin:    cfg.RateLimit.PerMinute,
		JWTSecret:     cfg.Auth.JWTSecret,
		NotifySecret:  cfg.Auth.NotifySecret,
		Presence:      presence,
		Logger:        logger,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	cancel()
}
