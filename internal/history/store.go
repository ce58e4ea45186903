package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/udegarami/llmapi/internal/pipeline"
)

// Exchange is one stored transcript/reply pair.
type Exchange struct {
	ID            uuid.UUID `json:"id"`
	Transcription string    `json:"transcription"`
	Reply         string    `json:"reply"`
	Model         string    `json:"model"`
	AudioFilename string    `json:"audio_filename"`
	AudioBytes    int64     `json:"audio_bytes"`
	LatencyMs     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// SearchResult is an exchange scored by semantic similarity.
type SearchResult struct {
	Exchange
	Score float64 `json:"score"`
}

// ErrSearchUnavailable is returned when semantic search is requested
// but no embedder is configured.
var ErrSearchUnavailable = errors.New("semantic search requires an OpenAI API key")

// Embedder turns text into a vector. Optional: without one, exchanges
// are stored unembedded and semantic search is unavailable.
type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// Store persists exchanges in Postgres.
type Store struct {
	db       *pgxpool.Pool
	embedder Embedder
	logger   *slog.Logger
}

func NewStore(db *pgxpool.Pool, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// Record inserts a finished exchange and returns its ID. The embedding
// is computed opportunistically; an embedding failure downgrades to an
// unembedded row rather than failing the insert.
func (s *Store) Record(ctx context.Context, ex pipeline.Exchange) (string, error) {
	id := uuid.New()

	var embedding *pgvector.Vector
	if s.embedder != nil {
		vec, err := s.embedder.EmbedSingle(ctx, ex.Transcription)
		if err != nil {
			s.logger.Warn("embedding failed, storing exchange without vector", "error", err)
		} else {
			v := pgvector.NewVector(vec)
			embedding = &v
		}
	}

	var err error
	if embedding != nil {
		_, err = s.db.Exec(ctx,
			`INSERT INTO exchanges (id, transcription, reply, model, audio_filename, audio_bytes, latency_ms, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, ex.Transcription, ex.Reply, ex.Model, ex.Filename, ex.AudioBytes, ex.LatencyMs, *embedding,
		)
	} else {
		_, err = s.db.Exec(ctx,
			`INSERT INTO exchanges (id, transcription, reply, model, audio_filename, audio_bytes, latency_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, ex.Transcription, ex.Reply, ex.Model, ex.Filename, ex.AudioBytes, ex.LatencyMs,
		)
	}
	if err != nil {
		return "", fmt.Errorf("insert exchange: %w", err)
	}

	return id.String(), nil
}

// List returns recent exchanges, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Exchange, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, transcription, reply, model, audio_filename, audio_bytes, latency_ms, created_at
		 FROM exchanges
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.ID, &e.Transcription, &e.Reply, &e.Model, &e.AudioFilename, &e.AudioBytes, &e.LatencyMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, e)
	}
	return exchanges, nil
}

// SearchSimilar embeds the query and returns the closest stored
// transcripts by cosine distance.
func (s *Store) SearchSimilar(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if s.embedder == nil {
		return nil, ErrSearchUnavailable
	}
	if topK <= 0 {
		topK = 10
	}

	vec, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	embedding := pgvector.NewVector(vec)

	rows, err := s.db.Query(ctx,
		`SELECT id, transcription, reply, model, audio_filename, audio_bytes, latency_ms, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM exchanges
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		embedding, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Transcription, &r.Reply, &r.Model, &r.AudioFilename, &r.AudioBytes, &r.LatencyMs, &r.CreatedAt, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}
