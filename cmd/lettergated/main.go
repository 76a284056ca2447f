package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/lettergate/gateway/openai"
	gatehttp "github.com/mihaimyh/lettergate/middleware/http"
	"github.com/mihaimyh/lettergate/pkg/api"
	"github.com/mihaimyh/lettergate/pkg/lettergate"
	zerologadapter "github.com/mihaimyh/lettergate/pkg/lettergate/logger/zerolog"
	prommetrics "github.com/mihaimyh/lettergate/pkg/lettergate/metrics/prometheus"
	"github.com/mihaimyh/lettergate/storage/file"
	"github.com/mihaimyh/lettergate/storage/firestore"
	"github.com/mihaimyh/lettergate/storage/memory"
	"github.com/mihaimyh/lettergate/storage/postgres"
	"github.com/mihaimyh/lettergate/storage/redis"
)

// main launches lettergated.
func main() {
	os.Exit(run())
}

// run executes lettergated and returns an exit code.
func run() int {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		zl.Error().Err(err).Msg("config error")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		zl.Error().Err(err).Str("backend", cfg.StorageBackend).Msg("storage error")
		return 1
	}
	if closeStore != nil {
		defer closeStore()
	}

	ledger, err := lettergate.NewLedger(store, lettergate.Config{
		DailyLimit: cfg.DailyLimit,
		Logger:     zerologadapter.NewLogger(zl),
		Metrics:    prommetrics.DefaultMetrics("lettergate"),
	})
	if err != nil {
		zl.Error().Err(err).Msg("ledger error")
		return 1
	}

	validator, err := lettergate.NewValidator(buildAuthorizer(cfg), cfg.MaxWords)
	if err != nil {
		zl.Error().Err(err).Msg("validator error")
		return 1
	}

	gatewayConfig := openai.DefaultConfig()
	gatewayConfig.BaseURL = cfg.OpenAIBaseURL
	gatewayConfig.Model = cfg.Model
	gatewayConfig.Timeout = cfg.requestTimeout()
	gateway, err := openai.New(cfg.OpenAIAPIKey, gatewayConfig)
	if err != nil {
		zl.Error().Err(err).Msg("gateway error")
		return 1
	}

	handler, err := api.NewHandler(api.Config{
		Ledger:    ledger,
		Validator: validator,
		Complete:  gateway.Complete,
		Logger:    zerologadapter.NewLogger(zl),
	})
	if err != nil {
		zl.Error().Err(err).Msg("handler error")
		return 1
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(gatehttp.CORS)
	router.Post("/v1/letters/check", handler.Check)
	router.Get("/v1/quota", handler.Quota)
	router.Get("/healthz", handler.Healthz)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info().Str("addr", cfg.ListenAddr).Str("backend", cfg.StorageBackend).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zl.Info().Msg("shutting down")
	case err := <-errCh:
		zl.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	return 0
}

// buildStore constructs the configured storage backend and an optional
// cleanup function.
func buildStore(ctx context.Context, cfg config) (lettergate.Store, func(), error) {
	switch cfg.StorageBackend {
	case "file":
		store, err := file.New(cfg.FileRoot)
		return store, nil, err

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		store, err := redis.New(client, redis.DefaultConfig())
		return store, func() { _ = client.Close() }, err

	case "postgres":
		pgConfig := postgres.DefaultConfig()
		pgConfig.ConnectionString = cfg.DatabaseURL
		store, err := postgres.New(ctx, pgConfig)
		if err != nil {
			return nil, nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil

	case "firestore":
		client, err := gcfirestore.NewClient(ctx, cfg.FirestoreProj)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		store, err := firestore.New(client, firestore.Config{})
		return store, func() { _ = client.Close() }, err

	default:
		return memory.New(), nil, nil
	}
}

// buildAuthorizer selects the caller policy from the environment: a shared
// secret or a static allow-list.
func buildAuthorizer(cfg config) lettergate.Authorizer {
	if len(cfg.ApprovedUserIDs) > 0 {
		return lettergate.NewAllowListAuthorizer(cfg.ApprovedUserIDs)
	}
	return lettergate.NewSecretAuthorizer(cfg.APIKey)
}
