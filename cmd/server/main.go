// Datacrumbs enrollment widget server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/asmaf9056/afatimachtbot36/internal/agent"
	"github.com/asmaf9056/afatimachtbot36/internal/api"
	"github.com/asmaf9056/afatimachtbot36/internal/catalog"
	"github.com/asmaf9056/afatimachtbot36/internal/config"
	"github.com/asmaf9056/afatimachtbot36/internal/enrollment"
	"github.com/asmaf9056/afatimachtbot36/internal/healthcheck"
	"github.com/asmaf9056/afatimachtbot36/internal/identity"
	"github.com/asmaf9056/afatimachtbot36/internal/ingest"
	"github.com/asmaf9056/afatimachtbot36/internal/intent"
	"github.com/asmaf9056/afatimachtbot36/internal/metrics"
	"github.com/asmaf9056/afatimachtbot36/internal/middleware"
	"github.com/asmaf9056/afatimachtbot36/internal/session"
	"github.com/asmaf9056/afatimachtbot36/internal/store"
	"github.com/asmaf9056/afatimachtbot36/web"
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

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "completion_configured", cfg.CompletionEnabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize dependencies.
	index, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := index.Close(); closeErr != nil {
			slog.Error("Failed to close knowledge index", "error", closeErr)
		}
	}()
	if err := index.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Knowledge index connected", "path", cfg.DBPath)

	if cfg.Ingest.Enabled {
		fetcher := ingest.NewFetcher(cfg.Ingest.Timeout, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, logger)
		res := ingest.Load(ctx, fetcher, index, cfg.Ingest.URLs, cat.KnowledgeText(), logger)
		slog.Info("Ingestion complete", "pages", res.Pages, "chunks", res.Chunks, "fallback", res.Fallback)
	}
	if n, err := index.Count(ctx); err == nil {
		m.SetIndexedChunks(n)
	}

	agentCfg := agent.Config{
		Provider:         cfg.Completion.Provider,
		ModelName:        cfg.Completion.Model,
		GoogleAPIKey:     cfg.Completion.GoogleAPIKey,
		OpenRouterAPIKey: cfg.Completion.OpenRouterAPIKey,
		BaseURL:          cfg.Completion.BaseURL,
		Temperature:      cfg.Completion.Temperature,
		Timeout:          cfg.Completion.Timeout,
		BreakerFailures:  cfg.Completion.BreakerFailures,
		BreakerCooldown:  cfg.Completion.BreakerCooldown,
		ContextChunks:    cfg.Completion.ContextChunks,
	}
	completer, err := agent.NewCompleter(agentCfg)
	if err != nil {
		return err
	}
	agentSvc := agent.NewService(agentCfg, cat, completer, index, logger)
	if agentSvc.Enabled() {
		slog.Info("Completion provider enabled", "provider", agentSvc.Provider(), "model", cfg.Completion.Model)
	} else {
		slog.Info("Completion provider disabled, replies come from the fallback table")
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	validator := enrollment.NewValidator()
	confirmer := enrollment.NewConfirmer(cat.NextSteps, cat.ContactEmail)
	registry := session.NewRegistry(func() *session.Machine {
		return session.NewMachine(validator, confirmer)
	})
	classifier := intent.New(intent.WithWeakTier(cfg.Intent.WeakTier))
	sessions := session.NewService(registry, agentSvc, classifier, m, conversationLogger, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, cfg.RateLimit.IdleEviction, m)

	// Initialize handlers.
	baseHandler := api.NewHandler(sessions, cfg.MaxBodyBytes)
	chatHandler := api.NewChatHandler(baseHandler)
	healthHandler := api.NewHealthHandler(index, agentSvc, registry.Len)
	infoHandler := api.NewInfoHandler(cat, api.WidgetConfig{
		CompletionEnabled: agentSvc.Enabled(),
		Provider:          agentSvc.Provider(),
		WeakIntentTier:    classifier.WeakTier(),
		SessionTTLSeconds: int(cfg.SessionTTL.Seconds()),
	})
	wsHandler := api.NewWebSocketHandler(baseHandler, limiter, cfg.AllowedOrigins, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(api.Instrument(m))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	infoHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Visitor actions are rate limited per visitor.
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		chatHandler.RegisterRoutes(r)
	})

	// WebSocket endpoint. Messages are limited inside the handler.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded widget (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Note: WebSocket connections require no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return session.RunSweeper(gctx, registry, cfg.SessionTTL, cfg.SweepInterval, sessions.Expire)
	})

	g.Go(func() error {
		return limiter.Run(gctx, time.Minute)
	})

	if port := strings.TrimSpace(cfg.GRPCHealthPort); port != "" {
		hs := healthcheck.New(logger)
		g.Go(func() error {
			return hs.Monitor(gctx, 15*time.Second, index.Ping)
		})
		g.Go(func() error {
			return hs.ListenAndServe(gctx, ":"+port)
		})
	}

	return g.Wait()
}
