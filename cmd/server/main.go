package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/cache"
	"github.com/evyataryagoni/ipglobe/internal/config"
	"github.com/evyataryagoni/ipglobe/internal/handler"
	"github.com/evyataryagoni/ipglobe/internal/limiter"
	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/metrics"
	"github.com/evyataryagoni/ipglobe/internal/provider"
	"github.com/evyataryagoni/ipglobe/internal/router"
	"github.com/evyataryagoni/ipglobe/internal/service"
	"github.com/evyataryagoni/ipglobe/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	appConfig := config.Load()

	appLogger := setupLogger(appConfig)
	cacheStore := setupStore(appConfig, appLogger)
	defer cacheStore.Close()

	rateLimiter := setupRateLimiter(appConfig, appLogger)
	defer rateLimiter.Close()

	metricsCollector := metrics.New()

	locationCache := cache.New(cacheStore, appLogger,
		cache.WithTTL(appConfig.CacheTTL),
		cache.WithMetrics(metricsCollector),
	)

	chain := provider.NewDefaultChain(provider.Config{
		Timeout:     appConfig.ProviderTimeout,
		UserAgent:   appConfig.UserAgent,
		IPInfoToken: appConfig.IPInfoToken,
	}, locationCache, appLogger, metricsCollector)

	locateService := setupService(appConfig, locationCache, chain, metricsCollector, appLogger)

	appRouter := router.SetupRouter(router.Handlers{
		Batches: handler.NewBatchHandler(locateService, appLogger),
		Cache:   handler.NewCacheHandler(locationCache, appConfig.StoreType, appLogger),
	}, rateLimiter, metricsCollector, prometheus.DefaultGatherer, appLogger)

	startServer(appConfig, appRouter, locateService, appLogger)
}

// setupLogger initializes the structured logger
func setupLogger(appConfig *config.Config) *logger.Logger {
	appLogger := logger.New(logger.Config{
		Level:      appConfig.LogLevel,
		Pretty:     appConfig.Pretty,
		OutputFile: appConfig.LogFile,
	})

	appLogger.Info().Msg("Starting IPGlobe server...")
	appLogger.Info().
		Str("port", appConfig.Port).
		Str("store_type", appConfig.StoreType).
		Dur("cache_ttl", appConfig.CacheTTL).
		Str("provider", appConfig.Provider).
		Dur("pacer_interval", appConfig.PacerInterval).
		Float64("cluster_threshold", appConfig.ClusterThreshold).
		Str("rate_limiter_type", appConfig.RateLimitType).
		Int("rate_limit", appConfig.RateLimit).
		Int("rate_limit_window", appConfig.RateLimitWindow).
		Msg("Configuration loaded")

	return appLogger
}

// setupStore opens the durable cache backend (memory, file, Redis or MySQL)
func setupStore(appConfig *config.Config, log *logger.Logger) store.Store {
	s, err := store.New(store.Config{
		Type:          appConfig.StoreType,
		FilePath:      appConfig.StorePath,
		MySQLDSN:      appConfig.MySQLDSN,
		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Str("type", appConfig.StoreType).Msg("Failed to initialize cache store")
	}

	log.Info().Str("type", appConfig.StoreType).Msg("Cache store initialized")
	return s
}

// setupRateLimiter initializes the per-client API rate limiter
func setupRateLimiter(appConfig *config.Config, log *logger.Logger) limiter.Limiter {
	// 10 requests per 5 seconds = 2.0 req/s
	effectiveRate := float64(appConfig.RateLimit) / float64(appConfig.RateLimitWindow)

	rateLimiter, err := limiter.NewLimiter(limiter.LimiterConfig{
		Type:              appConfig.RateLimitType,
		RequestsPerSecond: effectiveRate,
		RedisAddr:         appConfig.RedisAddr,
		RedisPassword:     appConfig.RedisPassword,
		RedisDB:           appConfig.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}

	log.Info().
		Str("type", appConfig.RateLimitType).
		Float64("requests_per_second", effectiveRate).
		Msg("Rate limiter initialized")

	return rateLimiter
}

func setupService(appConfig *config.Config, c *cache.LocationCache, chain *provider.Chain, m *metrics.Metrics, log *logger.Logger) *service.LocateService {
	svc, err := service.NewLocateService(c, chain, service.Config{
		DefaultProvider: appConfig.Provider,
		PaceInterval:    appConfig.PacerInterval,
		Threshold:       appConfig.ClusterThreshold,
		RefreshWindow:   appConfig.RefreshWindow,
		History:         appConfig.BatchHistory,
	}, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize locate service")
	}
	if !chain.Supports(appConfig.Provider) {
		log.Fatal().Str("provider", appConfig.Provider).Strs("supported", chain.Names()).Msg("Unknown default provider")
	}
	return svc
}

// startServer serves until SIGINT/SIGTERM, then drains requests and the running batch
func startServer(appConfig *config.Config, appRouter http.Handler, svc *service.LocateService, log *logger.Logger) {
	server := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           appRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("port", appConfig.Port).
			Str("api_endpoint", "http://localhost:"+appConfig.Port+"/v1/batches").
			Str("health_check", "http://localhost:"+appConfig.Port+"/health").
			Str("metrics", "http://localhost:"+appConfig.Port+"/metrics").
			Msg("Server is running")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown did not complete")
	}

	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Server stopped")
	case <-shutdownCtx.Done():
		log.Warn().Msg("Running batch did not finish before shutdown timeout")
	}
}
