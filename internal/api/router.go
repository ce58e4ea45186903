package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/udegarami/llmapi/internal/api/handlers"
	"github.com/udegarami/llmapi/internal/api/middleware"
	"github.com/udegarami/llmapi/internal/audio"
	"github.com/udegarami/llmapi/internal/auth"
	"github.com/udegarami/llmapi/internal/config"
	"github.com/udegarami/llmapi/internal/llm"
	"github.com/udegarami/llmapi/internal/metrics"
	"github.com/udegarami/llmapi/internal/pipeline"
	"github.com/udegarami/llmapi/internal/stt"
)

// Deps carries everything the router mounts. DB, Redis, History, Jobs
// and Queue may be nil; the corresponding routes are then left out or
// degrade gracefully.
type Deps struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Pipeline *pipeline.Pipeline
	Engine   stt.Engine
	Spooler  *audio.Spooler
	Gateway  llm.Gateway
	History  handlers.HistoryStore
	Jobs     handlers.JobStore
	Queue    handlers.JobQueue
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Router struct {
	mux  *chi.Mux
	deps Deps
	jwt  *auth.JWTMiddleware
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
		jwt:  auth.NewJWTMiddleware(deps.Config.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	cfg := rt.deps.Config

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.deps.Logger, rt.deps.Metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	rl := middleware.NewRateLimiter(float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
	r.Use(rl.Limit)

	// Probes and metrics (no auth)
	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	processH := handlers.NewProcessHandler(rt.deps.Pipeline, cfg.Pipeline.MaxUploadBytes)

	// Original wire contract. Both spellings accepted.
	r.Post("/process-audio/", processH.ProcessAudio)
	r.Post("/process-audio", processH.ProcessAudio)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		r.Post("/process", processH.ProcessAudioV1)

		transcribeH := handlers.NewTranscribeHandler(rt.deps.Spooler, rt.deps.Engine, cfg.Pipeline.MaxUploadBytes)
		r.Post("/transcribe", transcribeH.Transcribe)

		chatH := handlers.NewChatHandler(rt.deps.Gateway)
		r.Post("/chat", chatH.Chat)
		r.Post("/chat/stream", chatH.ChatStream)
		r.Post("/embed", chatH.Embed)
		r.Get("/models", chatH.Models)

		if rt.deps.History != nil {
			historyH := handlers.NewHistoryHandler(rt.deps.History)
			r.Get("/history", historyH.List)
			r.Get("/history/search", historyH.Search)
		}

		if rt.deps.Queue != nil && rt.deps.Jobs != nil {
			jobsH := handlers.NewJobsHandler(rt.deps.Spooler, rt.deps.Queue, rt.deps.Jobs,
				rt.deps.Metrics, rt.deps.Logger, cfg.Pipeline.MaxUploadBytes)
			r.Post("/jobs", jobsH.Submit)
			r.Get("/jobs/{id}", jobsH.Get)
		}
	})

	return r
}
