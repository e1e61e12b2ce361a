package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackload-kz/payment-sub010/config"
	"github.com/hackload-kz/payment-sub010/internal/adapter/acquirer"
	httpHandler "github.com/hackload-kz/payment-sub010/internal/adapter/http/handler"
	pgStorage "github.com/hackload-kz/payment-sub010/internal/adapter/storage/postgres"
	redisStorage "github.com/hackload-kz/payment-sub010/internal/adapter/storage/redis"
	"github.com/hackload-kz/payment-sub010/internal/adapter/webhook"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"
	"github.com/hackload-kz/payment-sub010/internal/lock"
	"github.com/hackload-kz/payment-sub010/internal/metrics"
	"github.com/hackload-kz/payment-sub010/internal/queue"
	"github.com/hackload-kz/payment-sub010/internal/ratelimit"
	"github.com/hackload-kz/payment-sub010/internal/service"
	"github.com/hackload-kz/payment-sub010/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const teamCacheTTL = time.Minute

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Int("port", cfg.Server.Port).Msg("Starting payment gateway")

	ctx := context.Background()
	runCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	// Storage
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	paymentRepo := pgStorage.NewPaymentRepo(pool)
	teamRepo := pgStorage.NewTeamRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)

	// Observability
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := metrics.NewSink(registry)

	// Locking. The detector breaks cross-payment lock cycles.
	locks := lock.NewRedisLockService(rdb, log)
	if cfg.Lock.DeadlockInterval > 0 {
		detector := lock.NewDetector(locks, lock.DetectorConfig{
			Interval:    cfg.Lock.DeadlockInterval,
			AutoResolve: true,
		}, logger.Component(log, "deadlock-detector"))
		go detector.Run(runCtx)
	}

	// Worker pool for card processing jobs.
	taskQueue := queue.NewPool(queue.Config{
		Capacity:    cfg.Queue.Capacity,
		Workers:     cfg.Queue.Workers,
		JobTimeout:  cfg.Queue.JobTimeout,
		MaxRetries:  cfg.Queue.MaxRetries,
		BackoffBase: cfg.Queue.BackoffBase,
	}, sink, logger.Component(log, "queue"))

	// Card acquirer
	var acq ports.CardAcquirer
	if cfg.Acquirer.Simulate || cfg.Acquirer.BaseURL == "" {
		log.Warn().Msg("Using in-process acquirer simulator")
		acq = acquirer.NewSimulator()
	} else {
		acq = acquirer.NewClient(acquirer.Config{
			BaseURL:        cfg.Acquirer.BaseURL,
			APIKey:         cfg.Acquirer.APIKey,
			Timeout:        cfg.Acquirer.Timeout,
			BreakerTimeout: cfg.Acquirer.BreakerTimeout,
		}, log)
	}

	// Services
	teamSvc := service.NewTeamService(teamRepo, teamCacheTTL, log)
	tokenSvc := service.NewSHA256TokenService()

	// Webhooks, signed with the same token scheme merchants use on requests.
	sender := webhook.NewHTTPSender(cfg.Webhook.SendTimeout, log)
	webhookSvc := service.NewWebhookService(service.WebhookConfig{
		MaxAttempts:  cfg.Webhook.MaxAttempts,
		PollInterval: cfg.Webhook.PollInterval,
		SendTimeout:  cfg.Webhook.SendTimeout,
		BatchSize:    cfg.Webhook.BatchSize,
	}, webhookRepo, sender, teamSvc, tokenSvc, sink, logger.Component(log, "webhook"))
	go webhookSvc.Run(runCtx)

	auditSvc := service.NewAuditService(auditRepo, log)
	adminTokens := service.NewJWTAdminTokenService(service.AdminAuthConfig{
		PasswordHash: cfg.Admin.PasswordHash,
		JWTSecret:    cfg.Admin.JWTSecret,
		TokenTTL:     cfg.Admin.TokenTTL,
	})
	lifecycle := service.NewLifecycleService(service.LifecycleConfig{
		PublicBaseURL:    cfg.Server.PublicBaseURL,
		PaymentTTL:       cfg.Payment.TTL,
		LockLease:        cfg.Lock.Lease,
		LockWait:         cfg.Lock.Wait,
		MaxUpdateRetries: cfg.Payment.MaxUpdateRetries,
		AcquirerRetries:  cfg.Payment.AcquirerRetries,
	}, paymentRepo, locks, taskQueue, acq, webhookSvc, sink, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Log:         log,
		Lifecycle:   lifecycle,
		Teams:       teamSvc,
		Tokens:      tokenSvc,
		AdminTokens: adminTokens,
		Audit:       auditSvc,
		Limiter:     ratelimit.New(ratelimit.DefaultPolicies()),
		Metrics:     sink,
		Registry:    registry,
		Health: []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
		},
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopBackground()
	if err := taskQueue.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Worker pool did not drain in time")
	}

	log.Info().Msg("Server exited")
}
