// Deskmate client assistant server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/deskmate/internal/api"
	"github.com/ashureev/deskmate/internal/assistant"
	"github.com/ashureev/deskmate/internal/config"
	"github.com/ashureev/deskmate/internal/dialogue"
	"github.com/ashureev/deskmate/internal/identity"
	"github.com/ashureev/deskmate/internal/middleware"
	"github.com/ashureev/deskmate/internal/notify"
	"github.com/ashureev/deskmate/internal/observability"
	"github.com/ashureev/deskmate/internal/store"
	"github.com/ashureev/deskmate/internal/vault"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	if err := repo.SeedDefaults(context.Background()); err != nil {
		slog.Error("Failed to seed defaults", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	healthHandler := api.NewHealthHandler(repo, 5*time.Second)

	storeGateways := assistant.NewStoreGateways(repo, 0)
	gateways := storeGateways.Gateways()

	// Advisor notifications: always stored, also published when Redis is configured.
	var publishers []notify.Publisher
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				slog.Warn("Failed to close Redis client", "error", closeErr)
			}
		}()
		redisNotifier := notify.NewRedisNotifier(rdb, cfg.Redis.Channel, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisNotifier.Ping(pingCtx); err != nil {
			slog.Warn("Redis unreachable, advisor notices will be retried per publish", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
		publishers = append(publishers, redisNotifier)
		healthHandler.AddCheck("redis", redisNotifier)
		slog.Info("Advisor notices enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}
	fanout := notify.NewFanout(repo, logger, publishers...)
	gateways.Consultations = fanout
	gateways.Activity = notify.NewEscalator(storeGateways, fanout)

	// Secure vault (optional).
	if cfg.VaultAddr != "" {
		slog.Info("Attempting to connect to secure vault via gRPC", "address", cfg.VaultAddr)
		vaultClient, err := vault.NewGrpcClient(vault.DefaultClientConfig(cfg.VaultAddr), logger)
		if err != nil {
			slog.Warn("Failed to connect to secure vault, vault queries will be unavailable", "error", err)
		} else {
			defer vaultClient.Close()
			gateways.Vault = vaultClient
			healthHandler.AddCheck("vault", vaultClient)
		}
	} else {
		slog.Info("Secure vault disabled (VAULT_ADDR not set)")
	}

	var phrases []string
	if cfg.Dialogue.AdvicePhrasesFile != "" {
		phrases, err = dialogue.LoadPhrases(cfg.Dialogue.AdvicePhrasesFile)
		if err != nil {
			slog.Error("Failed to load advice phrases", "error", err)
			os.Exit(1)
		}
		slog.Info("Advice phrases loaded", "path", cfg.Dialogue.AdvicePhrasesFile, "count", len(phrases))
	}

	table := dialogue.DefaultTable()
	table.CalendarURL = cfg.Dialogue.CalendarURL

	conversationLogger, err := assistant.NewConversationLogger(assistant.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	hub := assistant.NewHub(repo, gateways, assistant.HubConfig{
		Delays: dialogue.Delays{
			Processing:     cfg.Dialogue.ProcessingDelay,
			Conversational: cfg.Dialogue.ConversationalDelay,
		},
		Table:       table,
		Interceptor: dialogue.NewInterceptor(phrases),
		Metrics:     observability.Dialogue{},
		CallTimeout: cfg.GatewayTimeout,
		IdleTTL:     cfg.SessionIdleTTL,
	}, conversationLogger, logger)

	limiter := assistant.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	origins := []string{"*"}
	if cfg.FrontendURL != "" && !cfg.IsDevelopment() {
		origins = []string{cfg.FrontendURL}
	}
	assistantHandler := assistant.NewHandler(hub, limiter, logger, assistant.WithOriginPatterns(originHosts(origins)))

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(observability.HTTPMetrics)
	r.Use(middleware.CORS(origins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	// Assistant routes need a client identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		assistantHandler.RegisterRoutes(r)
	})

	// WriteTimeout stays 0 so push streams are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub.StartSweeper(ctx)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Sessions did not drain before shutdown deadline", "error", err)
	}

	slog.Info("Server stopped successfully")
}

// originHosts turns CORS origins into the host patterns the websocket
// handshake checks.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			slog.Warn("Ignoring malformed origin", "origin", o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
