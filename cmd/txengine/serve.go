package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	httpAdapter "github.com/iho/txengine/internal/adapter/http"
	"github.com/iho/txengine/internal/adapter/http/handler"
	"github.com/iho/txengine/internal/adapter/http/middleware"
	"github.com/iho/txengine/internal/adapter/repository/memory"
	redisRepo "github.com/iho/txengine/internal/adapter/repository/redis"
	"github.com/iho/txengine/internal/infrastructure/config"
	"github.com/iho/txengine/internal/infrastructure/idgen"
	"github.com/iho/txengine/internal/infrastructure/metrics"
	"github.com/iho/txengine/internal/infrastructure/redis"
	"github.com/iho/txengine/internal/usecase"
)

const limiterCleanupInterval = time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long: `Keeps one ledger in memory and accepts CSV batches and single transactions
over HTTP. Set REDIS_URL to enable idempotency keys and batch report lookups.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, newLogger(cmd, cfg))
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (env HTTP_PORT)")

	return cmd
}

// buildRouter wires the ledger, its HTTP surface and the optional Redis and
// metrics integrations.
func buildRouter(cfg *config.Config, redisClient *goredis.Client, reg *prometheus.Registry, logger zerolog.Logger) (http.Handler, *middleware.RateLimiter) {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	ledger := usecase.NewLedgerUseCase(
		memory.NewAccountRepository(),
		memory.NewJournalRepository(),
		memory.NewDisputeRepository(),
		usecase.WithPolicy(policyFromConfig(cfg)),
		usecase.WithMetrics(m),
		usecase.WithLogger(logger),
	)
	ingest := usecase.NewIngestUseCase(ledger, idgen.NewULIDGenerator(), m, logger)

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler: handler.NewAccountHandler(ledger),
		HealthHandler:  handler.NewHealthHandler(redisClient),
		IdempotencyTTL: cfg.IdempotencyTTL,
		Metrics:        m,
		Logger:         logger,
	}

	txCfg := handler.TransactionHandlerConfig{
		Ingest:       ingest,
		Ledger:       ingest,
		ReportTTL:    cfg.ReportTTL,
		MaxBodyBytes: cfg.HTTPMaxBodyBytes,
		Logger:       logger,
	}

	if redisClient != nil {
		reports := redisRepo.NewBreakerReportStore(
			redisRepo.NewReportStore(redisClient, m),
			redisRepo.DefaultBreakerConfig,
			logger,
		)
		txCfg.Reports = reports
		routerCfg.BatchHandler = handler.NewBatchHandler(reports)
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient, m)
	}
	routerCfg.TransactionHandler = handler.NewTransactionHandler(txCfg)

	if reg != nil {
		routerCfg.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		routerCfg.RateLimiter = limiter
	}

	return httpAdapter.NewRouter(routerCfg), limiter
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().
		Bool("strict", cfg.LedgerStrict).
		Bool("reject_overdraft", cfg.LedgerRejectOverdraft).
		Bool("freeze_locked", cfg.LedgerFreezeLocked).
		Msg("Starting txengine server")

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		logger.Info().Msg("Connected to Redis")
	} else {
		logger.Info().Msg("Redis disabled, idempotency keys and batch reports are off")
	}

	var reg *prometheus.Registry
	if cfg.MetricsEnabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	router, limiter := buildRouter(cfg, redisClient, reg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	if limiter != nil {
		go cleanupLimiters(ctx, limiter, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error().Err(err).Msg("HTTP server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	logger.Info().Msg("Server exited")
	return nil
}

func cleanupLimiters(ctx context.Context, limiter *middleware.RateLimiter, logger zerolog.Logger) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.CleanupLimiters(); n > 0 {
				logger.Debug().Int("removed", n).Msg("Evicted idle rate limiters")
			}
		}
	}
}
