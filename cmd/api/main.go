package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/udegarami/llmapi/internal/api"
	"github.com/udegarami/llmapi/internal/audio"
	"github.com/udegarami/llmapi/internal/config"
	"github.com/udegarami/llmapi/internal/database"
	"github.com/udegarami/llmapi/internal/history"
	"github.com/udegarami/llmapi/internal/jobs"
	"github.com/udegarami/llmapi/internal/llm"
	"github.com/udegarami/llmapi/internal/metrics"
	"github.com/udegarami/llmapi/internal/pipeline"
	"github.com/udegarami/llmapi/internal/queue"
	"github.com/udegarami/llmapi/internal/stt"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	m := metrics.New()
	spooler := audio.NewSpooler(cfg.Pipeline.SpoolDir)
	engine := buildEngine(cfg.STT)
	gw := llm.NewGateway(cfg.LLM)

	var remote pipeline.Generator
	if p, err := gw.Provider("openai"); err == nil {
		remote = llm.NewReplier(p, cfg.LLM.OpenAIModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set, remote generation disabled")
	}
	localProvider, _ := gw.Provider("local")
	local := llm.NewReplier(localProvider, cfg.LLM.LocalModel)

	pcfg := pipeline.Config{
		Spooler:     spooler,
		Transcriber: engine,
		Remote:      remote,
		Local:       local,
		RemoteModel: cfg.LLM.OpenAIModel,
		LocalModel:  cfg.LLM.LocalModel,
		Metrics:     m,
		Logger:      logger,
		Timeout:     cfg.Pipeline.Timeout,
	}

	deps := api.Deps{
		Config:  cfg,
		Engine:  engine,
		Spooler: spooler,
		Gateway: gw,
		Metrics: m,
		Logger:  logger,
	}

	// Database connection (optional)
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Warn("database unavailable, history disabled", "error", err)
	} else {
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}

		var embedder history.Embedder
		if cfg.LLM.OpenAIKey != "" {
			embedder = history.NewGatewayEmbedder(gw, "")
		}
		store := history.NewStore(pool, embedder, logger)
		pcfg.History = store
		deps.DB = pool
		deps.History = store
	}

	// Redis connection (optional)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, async jobs disabled", "error", err)
	} else {
		defer rdb.Close()
		queueClient := queue.NewClient(cfg.Redis)
		defer queueClient.Close()

		deps.Redis = rdb
		deps.Jobs = jobs.NewStore(rdb, cfg.Jobs.ResultTTL)
		deps.Queue = queueClient
	}

	deps.Pipeline = pipeline.New(pcfg)

	router := api.NewRouter(deps)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "stt_backend", cfg.STT.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func buildEngine(cfg config.STTConfig) stt.Engine {
	if cfg.Backend == "openai" {
		return stt.NewOpenAIEngine(stt.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	}
	return stt.NewLocalEngine(stt.LocalConfig{
		BaseURL: cfg.LocalBaseURL,
		Model:   cfg.LocalModel,
	})
}
