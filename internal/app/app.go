package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/api"
	"github.com/saferide/ridepay/internal/config"
	"github.com/saferide/ridepay/internal/db"
	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/observability"
	"github.com/saferide/ridepay/internal/repository"
	"github.com/saferide/ridepay/internal/service"
	"github.com/saferide/ridepay/internal/worker"
)

// Run bootstraps the HTTP server and background workers, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, db.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewPostgresStore(pool)
	cache := repository.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)

	var gw gateway.Gateway
	if cfg.GatewayBaseURL == "" {
		logger.Warn("no gateway configured, using mock")
		gw = gateway.NewMockGateway()
	} else {
		gw = gateway.NewClient(gateway.ClientConfig{
			BaseURL:     cfg.GatewayBaseURL,
			ClientID:    cfg.GatewayClientID,
			APIKey:      cfg.GatewayAPIKey,
			ChecksumKey: cfg.GatewayChecksumKey,
			ReadTimeout: cfg.GatewayTimeout,
			MaxAttempts: cfg.GatewayMaxAttempts,
			BackoffBase: cfg.GatewayBackoffBase,
		})
	}

	walletSvc := service.NewWalletService(store, cache)
	balanceSvc := service.NewBalanceCalculator(store, cache)
	topupSvc := service.NewTopupService(store, gw, cache)
	payoutSvc := service.NewPayoutService(store, gw, cache)
	webhookSvc := service.NewWebhookService(topupSvc, payoutSvc, cfg.WebhookHMACKey, service.LogNotifier{})
	validator := service.NewLedgerValidator(store, cfg.LedgerTolerance)
	rideSvc := service.NewRideFundCoordinator(walletSvc,
		service.NewCommissionPricing(cfg.CommissionRate),
		service.NoBookings{},
		service.RideConfig{GracePeriod: cfg.CancelGrace, CancelFeeRate: cfg.CancelFeeRate})

	poller := worker.NewPayoutPoller(payoutSvc).
		WithInterval(cfg.PayoutPollInterval).
		WithAgeWindow(cfg.PayoutPollMinAge, cfg.PayoutPollMaxAge).
		WithBatchSize(cfg.PayoutBatchSize)
	stopPoller := poller.Run(ctx)

	validatorWorker := worker.NewValidatorWorker(validator).
		WithInterval(cfg.ValidatorInterval)
	stopValidator := validatorWorker.Run(ctx)

	router := &api.Router{
		DB:                 pool,
		Redis:              redisClient,
		Wallets:            walletSvc,
		Balances:           balanceSvc,
		Topups:             topupSvc,
		Payouts:            payoutSvc,
		Webhooks:           webhookSvc,
		Rides:              rideSvc,
		Logger:             logger,
		PublicRateLimitRPS: cfg.PublicRateLimitRPS,
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopPoller()
	stopValidator()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
