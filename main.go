package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"hids-dashboard-go/internal/aggregate"
	"hids-dashboard-go/internal/config"
	"hids-dashboard-go/internal/handlers"
	"hids-dashboard-go/internal/logging"
	"hids-dashboard-go/internal/sources"
	"hids-dashboard-go/internal/store"
	"hids-dashboard-go/web"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, loadedDotenv, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logging.New(cfg.Log.Level, cfg.Log.Dir, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := zl.Sugar()

	if !loadedDotenv {
		logger.Info("No .env file found, using environment and defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// PostgreSQL (users and audit log)
	pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("Failed to connect to PostgreSQL", "error", err)
	}
	defer pgStore.Close()

	if err := pgStore.RunMigrations(ctx); err != nil {
		logger.Fatalw("Failed to run migrations", "error", err)
	}
	logger.Info("Database migrations completed")

	// Redis (settings)
	redisStore := store.NewRedisStore(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisStore.Close()
	if err := redisStore.Ping(ctx); err != nil {
		logger.Warnw("Redis unreachable, settings will fail until it is back", "addr", cfg.Redis.Addr, "error", err)
	}

	// Alert sources
	wazuh := sources.NewWazuhAdapter(sources.WazuhConfig{
		APIURL:         cfg.Wazuh.BaseURL(),
		APIUser:        cfg.Wazuh.User,
		APIPassword:    cfg.Wazuh.Password,
		APITimeout:     cfg.Wazuh.TimeoutDuration(),
		SearchURL:      cfg.OpenSearch.BaseURL(),
		SearchUser:     cfg.OpenSearch.User,
		SearchPassword: cfg.OpenSearch.Password,
		SearchTimeout:  cfg.OpenSearch.TimeoutDuration(),
		Index:          cfg.OpenSearch.Index,
	}, logger)
	keystrokeZone, err := cfg.KeystrokeZone()
	if err != nil {
		logger.Fatalw("Invalid keystroke time zone", "error", err)
	}
	keystroke := sources.NewKeystrokeAdapter(cfg.Keystroke.URL, cfg.KeystrokeTimeout(), keystrokeZone, logger)
	anomaly := sources.NewAnomalyAdapter(logger)

	aggregator := aggregate.New(logger, wazuh, anomaly, keystroke)

	pages, err := web.Pages()
	if err != nil {
		logger.Fatalw("Failed to parse templates", "error", err)
	}
	static, err := web.Static()
	if err != nil {
		logger.Fatalw("Failed to load static assets", "error", err)
	}

	h := handlers.NewHandler(handlers.Deps{
		Aggregator:    aggregator,
		Wazuh:         wazuh,
		Keystroke:     keystroke,
		Users:         pgStore,
		Audit:         pgStore,
		Settings:      redisStore,
		Pages:         pages,
		Static:        static,
		Logger:        logger,
		SessionSecret: cfg.SessionSecret,
		AuthEnabled:   cfg.Auth.Enabled,
		Production:    cfg.IsProduction(),
	})

	if cfg.Auth.Enabled {
		if err := h.InitAdmin(ctx, cfg.AdminPassword); err != nil {
			logger.Fatalw("Failed to create default admin", "error", err)
		}
	} else {
		logger.Warn("Authentication is disabled, every request acts as admin")
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           otelhttp.NewHandler(h.Router(), "hids-dashboard"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infow("Listening", "addr", srv.Addr, "env", cfg.Env)
		logger.Infow("Connected sources",
			"wazuh_api", cfg.Wazuh.BaseURL(),
			"opensearch", cfg.OpenSearch.BaseURL(),
			"keystroke", cfg.Keystroke.URL,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Graceful shutdown failed", "error", err)
	}
	aggregator.Wait()
	logger.Info("Server stopped")
}
