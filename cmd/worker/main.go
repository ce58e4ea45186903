package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

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
	gw := llm.NewGateway(cfg.LLM)

	var remote pipeline.Generator
	if p, err := gw.Provider("openai"); err == nil {
		remote = llm.NewReplier(p, cfg.LLM.OpenAIModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set, remote generation disabled")
	}
	localProvider, _ := gw.Provider("local")

	pcfg := pipeline.Config{
		Spooler:     audio.NewSpooler(cfg.Pipeline.SpoolDir),
		Transcriber: buildEngine(cfg.STT),
		Remote:      remote,
		Local:       llm.NewReplier(localProvider, cfg.LLM.LocalModel),
		RemoteModel: cfg.LLM.OpenAIModel,
		LocalModel:  cfg.LLM.LocalModel,
		Metrics:     metrics.New(),
		Logger:      logger,
		Timeout:     cfg.Pipeline.Timeout,
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
		pcfg.History = history.NewStore(pool, embedder, logger)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	worker := queue.NewAudioWorker(
		pipeline.New(pcfg),
		jobs.NewStore(rdb, cfg.Jobs.ResultTTL),
		logger,
	)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Jobs.Concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	slog.Info("starting worker", "concurrency", cfg.Jobs.Concurrency, "stt_backend", cfg.STT.Backend)
	if err := srv.Run(worker.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
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
