package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/adapter/esign"
	"github.com/xiaot623/gogo/mediator/internal/adapter/llm"
	"github.com/xiaot623/gogo/mediator/internal/adapter/payment"
	"github.com/xiaot623/gogo/mediator/internal/config"
	"github.com/xiaot623/gogo/mediator/internal/logger"
	"github.com/xiaot623/gogo/mediator/internal/push"
	"github.com/xiaot623/gogo/mediator/internal/ratelimit"
	"github.com/xiaot623/gogo/mediator/internal/repository"
	"github.com/xiaot623/gogo/mediator/internal/service"
	server "github.com/xiaot623/gogo/mediator/internal/transport/http"
	"github.com/xiaot623/gogo/mediator/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.New(cfg)

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Str("database", cfg.DatabaseURL).
		Str("mode", cfg.Mode).
		Msg("starting mediator")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer db.Close()

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize policy engine")
	}

	// Initialize providers
	generator := llm.NewGenerator(cfg)
	payments := payment.NewProvider(cfg)
	signatures, err := esign.NewProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize signature provider")
	}

	// Initialize webhook rate limiter
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(ctx, cfg.RedisURL, cfg.WebhookRateLimit, cfg.WebhookRateWindow)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	} else {
		log.Warn().Msg("REDIS_URL not set, webhook rate limits are per process")
		limiter = ratelimit.NewMemoryLimiter(cfg.WebhookRateLimit, cfg.WebhookRateWindow)
	}

	// Initialize push hub
	hub := push.NewHub()
	go hub.Run(ctx)
	pushServer := push.NewServer(hub, push.Options{
		PingInterval: cfg.WSPingInterval,
		WriteTimeout: cfg.WSWriteTimeout,
		ReadTimeout:  cfg.WSReadTimeout,
	})

	// Initialize service
	svc, err := service.New(db, generator, payments, signatures, hub, cfg, policyEngine)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize service")
	}

	e := server.NewServer(svc, pushServer, limiter, cfg)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.HTTPPort).Msg("mediator API started")

	<-ctx.Done()
	log.Info().Msg("shutting down mediator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown server gracefully")
	}

	log.Info().Msg("mediator stopped")
}
