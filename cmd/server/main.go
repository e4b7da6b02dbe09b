package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/celebrum-catalog/internal/api"
	"github.com/irfndi/celebrum-catalog/internal/api/handlers"
	"github.com/irfndi/celebrum-catalog/internal/cache"
	"github.com/irfndi/celebrum-catalog/internal/config"
	"github.com/irfndi/celebrum-catalog/internal/database"
	"github.com/irfndi/celebrum-catalog/internal/exchange"
	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/middleware"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/services"
	"github.com/irfndi/celebrum-catalog/internal/telemetry"
	"github.com/irfndi/celebrum-catalog/pkg/ccxt"
	"github.com/irfndi/celebrum-catalog/pkg/coingecko"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceVersion = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	if err := telemetry.InitTelemetry(telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Failed to shutdown telemetry")
		}
	}()

	ctx := context.Background()

	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool); err != nil {
		return err
	}

	var redisClient *database.RedisClient
	if cfg.Cache.Backend == config.CacheBackendRedis {
		redisClient, err = database.NewRedisConnection(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	ccxtClient := ccxt.NewClient(&cfg.CCXT)
	defer func() { _ = ccxtClient.Close() }()

	registry, err := buildExchangeRegistry(cfg, ccxtClient, logger)
	if err != nil {
		return err
	}

	catalogRepo := database.NewCatalogRepository(db.Pool)
	historyRepo := database.NewPriceHistoryRepository(db.Pool)
	identity := services.NewIdentityResolver(coingecko.NewClient(&cfg.CoinGecko, logger))

	var redisRaw *redis.Client
	if redisClient != nil {
		redisRaw = redisClient.Client
	}
	spotCoins := services.NewSpotCoinCache(
		services.NewSpotCoinAggregator(registry, identity, cfg.Aggregator.Timeout, logger),
		newSpotCoinStore(cfg.Cache.Backend, redisRaw, logger),
		cfg.Cache.SpotCoinsTTL,
		logger,
	)
	reconciler := services.NewCatalogReconciler(catalogRepo, spotCoins, logger)
	resolver := services.NewKlineFallbackResolver(registry, cfg.Kline.AttemptTimeout, cfg.Kline.BatchConcurrency, logger)
	refresher := services.NewMarketDataRefresher(catalogRepo, identity, logger)
	interval := models.KlineInterval(cfg.Kline.DefaultInterval)
	historySync := services.NewPriceHistorySyncService(catalogRepo, resolver, historyRepo, interval, cfg.Kline.DefaultLimit, logger)

	if cfg.Scheduler.Enabled {
		scheduler := services.NewScheduler(logger, schedulerJobs(cfg.Scheduler, reconciler, refresher, historySync)...)
		scheduler.Start()
		defer scheduler.Stop()
	}

	healthChecks := []handlers.HealthCheck{
		{Name: "database", Check: db.HealthCheck},
		{Name: "ccxt", Check: func(ctx context.Context) error {
			_, err := ccxtClient.HealthCheck(ctx)
			return err
		}},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, handlers.HealthCheck{Name: "redis", Check: redisClient.HealthCheck})
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.RequestLogger(logger))

	api.SetupRoutes(router, api.Handlers{
		Health:     handlers.NewHealthHandler(serviceVersion, healthChecks...),
		Catalog:    handlers.NewCatalogHandler(spotCoins, reconciler),
		Klines:     handlers.NewKlineHandler(resolver, catalogRepo, historyRepo, interval, cfg.Kline.DefaultLimit),
		MarketData: handlers.NewMarketDataHandler(refresher, historySync),
		Exchanges:  handlers.NewExchangeHandler(registry),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"service": cfg.Telemetry.ServiceName,
			"version": serviceVersion,
			"port":    cfg.Server.Port,
		}).Info("Application startup")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

// buildExchangeRegistry creates one breaker-wrapped CCXT client per configured
// exchange, in priority order.
func buildExchangeRegistry(cfg *config.Config, client ccxt.MarketDataClient, logger *logrus.Logger) (*exchange.Registry, error) {
	exchanges, err := cfg.ParsedExchanges()
	if err != nil {
		return nil, err
	}
	breakerConfig := exchange.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		OpenTimeout:      cfg.CircuitBreaker.OpenTimeout,
	}

	clients := make([]exchange.Client, 0, len(exchanges))
	for _, ex := range exchanges {
		ccxtClient := exchange.NewCCXTClient(ex, client, cfg.CCXT.RateLimitPerSecond, logger)
		clients = append(clients, exchange.NewBreakerClient(ccxtClient, breakerConfig, logger))
	}
	return exchange.NewRegistry(clients...)
}

func newSpotCoinStore(backend string, client *redis.Client, logger *logrus.Logger) cache.Store[[]models.CandidateCoin] {
	if backend == config.CacheBackendRedis && client != nil {
		return cache.NewRedisCache[[]models.CandidateCoin](client, logger)
	}
	return cache.NewMemoryCache[[]models.CandidateCoin]()
}

type (
	reconcileRunner interface {
		ReconcileTradingPairs(context.Context) ([]models.Coin, error)
	}
	marketDataRunner interface {
		RefreshMarketData(context.Context) ([]models.CoinMarketData, error)
	}
	priceHistoryRunner interface {
		SyncPriceHistory(context.Context) (services.PriceHistorySyncResult, error)
	}
)

func schedulerJobs(cfg config.SchedulerConfig, reconciler reconcileRunner, refresher marketDataRunner, history priceHistoryRunner) []services.ScheduledJob {
	return []services.ScheduledJob{
		{Name: "reconcile_trading_pairs", Interval: cfg.ReconcileInterval, Run: func(ctx context.Context) error {
			_, err := reconciler.ReconcileTradingPairs(ctx)
			return err
		}},
		{Name: "refresh_market_data", Interval: cfg.MarketDataInterval, Run: func(ctx context.Context) error {
			_, err := refresher.RefreshMarketData(ctx)
			return err
		}},
		{Name: "sync_price_history", Interval: cfg.PriceHistoryInterval, Run: func(ctx context.Context) error {
			_, err := history.SyncPriceHistory(ctx)
			return err
		}},
	}
}
