package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	bfhttp "github.com/Strob0t/BotForge/internal/adapter/http"
	"github.com/Strob0t/BotForge/internal/adapter/litellm"
	"github.com/Strob0t/BotForge/internal/adapter/mcp"
	bfnats "github.com/Strob0t/BotForge/internal/adapter/nats"
	"github.com/Strob0t/BotForge/internal/adapter/natskv"
	otelx "github.com/Strob0t/BotForge/internal/adapter/otel"
	"github.com/Strob0t/BotForge/internal/adapter/postgres"
	"github.com/Strob0t/BotForge/internal/adapter/qdrant"
	"github.com/Strob0t/BotForge/internal/adapter/ristretto"
	"github.com/Strob0t/BotForge/internal/adapter/tiered"
	"github.com/Strob0t/BotForge/internal/adapter/ws"
	"github.com/Strob0t/BotForge/internal/config"
	"github.com/Strob0t/BotForge/internal/logger"
	"github.com/Strob0t/BotForge/internal/middleware"
	"github.com/Strob0t/BotForge/internal/port/cache"
	"github.com/Strob0t/BotForge/internal/port/messagequeue"
	"github.com/Strob0t/BotForge/internal/resilience"
	"github.com/Strob0t/BotForge/internal/service"
)

const (
	serviceName    = "botforge"
	serviceVersion = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"default_model", cfg.Agent.DefaultModel,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry, err := otelx.Setup(ctx, cfg.Telemetry, serviceName)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := otelx.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := bfnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()

	llmClient := litellm.NewClient(cfg.LiteLLM, cfg.Knowledge.EmbeddingModel, cfg.Knowledge.Dimension)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	vectors := qdrant.NewClient(cfg.Qdrant, cfg.Knowledge.Dimension)
	vectors.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	if err := vectors.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("qdrant collection: %w", err)
	}

	embedCache, err := buildEmbedCache(ctx, cfg.Cache, queue)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	// --- Services ---
	hub := ws.NewHub()

	plans, err := service.NewPlanService(cfg.Plans.CustomDir)
	if err != nil {
		return fmt.Errorf("plans: %w", err)
	}

	store := postgres.NewStore(pool)
	chatbotSvc := service.NewChatbotService(store, plans)
	usageSvc := service.NewUsageService(store, cfg.Agent.CostPerKiloToken)
	memorySvc := service.NewMemoryService(store, cfg.Agent.MemoryTokenBudget)
	knowledgeSvc := service.NewKnowledgeService(store, vectors, llmClient, embedCache, queue, hub, plans, cfg.Knowledge)
	tools := service.NewToolRegistry(store, knowledgeSvc)
	syncSvc := service.NewSyncService(queue, hub, cfg.Sync.MaxRetries, cfg.Sync.StaleAfter)
	orch := service.NewOrchestrator(store, llmClient, plans, memorySvc, tools, usageSvc, queue, hub, metrics, cfg.Agent)

	// Channel workers report sync outcomes back over the queue.
	stopResults, err := queue.Subscribe(ctx, messagequeue.SubjectChannelSyncResult, syncSvc.HandleResult)
	if err != nil {
		return fmt.Errorf("sync result subscriber: %w", err)
	}
	defer stopResults()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepStaleSyncs(sweepCtx, syncSvc, cfg.Sync.StaleAfter)

	// --- HTTP ---
	handlers := bfhttp.NewHandlers(chatbotSvc, knowledgeSvc, usageSvc, syncSvc, orch)
	limiter := middleware.NewRateLimiter(cfg.Server.TurnRateLimit, cfg.Server.TurnRateBurst)

	r := chi.NewRouter()
	r.Use(bfhttp.SecurityHeaders)
	r.Use(bfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(bfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Telemetry.Enabled {
		r.Use(otelx.HTTPMiddleware(serviceName))
	}

	bfhttp.MountRoutes(r, handlers, hub, limiter)

	// --- MCP ---
	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(
			mcp.ServerConfig{
				Addr:    ":" + cfg.MCP.Port,
				Name:    serviceName,
				Version: serviceVersion,
				APIKey:  cfg.MCP.APIKey,
			},
			mcp.ServerDeps{
				Chatbots:  chatbotSvc,
				Usage:     usageSvc,
				Knowledge: knowledgeSvc,
				Plans:     plans,
			},
		)
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mcpSrv.Stop(stopCtx); err != nil {
				slog.Error("mcp shutdown failed", "error", err)
			}
		}()
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // SSE turns stream longer than any fixed write deadline
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildEmbedCache returns the query-embedding cache: in-process ristretto,
// layered over a shared NATS KV bucket when one is configured.
func buildEmbedCache(ctx context.Context, cfg config.Cache, queue *bfnats.Queue) (cache.Cache, error) {
	l1, err := ristretto.New(cfg.MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	if cfg.SharedBucket == "" {
		return l1, nil
	}
	kv, err := queue.KeyValue(ctx, cfg.SharedBucket, cfg.EmbeddingTTL)
	if err != nil {
		return nil, fmt.Errorf("shared cache bucket: %w", err)
	}
	slog.Info("shared embedding cache enabled", "bucket", cfg.SharedBucket)
	return tiered.New(l1, natskv.New(kv), cfg.EmbeddingTTL), nil
}

// sweepStaleSyncs periodically fails channel syncs stuck in flight.
func sweepStaleSyncs(ctx context.Context, syncs *service.SyncService, staleAfter time.Duration) {
	interval := staleAfter / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if swept := syncs.SweepStale(ctx); len(swept) > 0 {
				slog.Warn("stale channel syncs failed", "integrations", swept)
			}
		}
	}
}
