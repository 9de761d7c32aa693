package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/config"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/handler"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/cache"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/client"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/observability"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/sessionstore"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/navigation"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/rbac"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/service"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/session"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
		os.Exit(1)
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("environment", cfg.Environment),
		zap.String("backend_api_url", cfg.BackendAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.String("unknown_role_policy", string(cfg.RolePolicy())),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Session store ---
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := sessionstore.NewClient(startCtx, cfg.RedisURL)
	cancelStart()
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	store := sessionstore.New(redisClient, cfg.SessionTTL)

	// --- Cache ---
	profileCache := cache.New[*domain.UserProfile](cfg.CacheTTL)
	defer profileCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("dealer-backend", logger)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	backend := client.NewBackend(httpClient, cfg.BackendAPIURL, cb, resilienceCfg, metrics)

	// --- Authorization ---
	registry := rbac.NewRegistry(
		rbac.WithLogger(logger),
		rbac.WithPolicy(cfg.RolePolicy()),
		rbac.WithMetrics(metrics),
	)
	gate := navigation.NewGate(registry, metrics, logger)
	navigation.RegisterDefaults(gate)

	// --- Services ---
	sessions := session.NewProvider(store, backend, profileCache, metrics, logger)
	authSvc := service.NewAuthService(backend, sessions, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	quoteSvc := service.NewQuoteService(backend, registry, metrics, logger)
	orderSvc := service.NewOrderService(backend, backend, registry, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Auth:     authSvc,
		Sessions: sessions,
		Gate:     gate,
		Registry: registry,
		Quotes:   quoteSvc,
		Orders:   orderSvc,
		Metrics:  metrics,
		Checks: []handler.HealthCheck{
			{Name: "redis", Ping: store.Ping},
		},
		Logger:         logger,
		LoginRateLimit: cfg.LoginRateLimit,
		SSLRedirect:    cfg.IsProduction(),
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
