package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the statements applied at startup. The service owns a
// single table; the vector extension enables semantic search over
// stored transcripts and its absence is tolerated (the embedding
// column then stays unused).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS exchanges (
		id uuid PRIMARY KEY,
		transcription text NOT NULL,
		reply text NOT NULL,
		model text NOT NULL,
		audio_filename text NOT NULL DEFAULT '',
		audio_bytes bigint NOT NULL DEFAULT 0,
		latency_ms bigint NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS exchanges_created_at_idx
		ON exchanges (created_at DESC)`,
}

var vectorSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`ALTER TABLE exchanges ADD COLUMN IF NOT EXISTS embedding vector(1536)`,
}

// EnsureSchema creates the exchanges table and, when the pgvector
// extension is installable, the embedding column.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	for _, stmt := range vectorSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			slog.Warn("pgvector unavailable, semantic search disabled", "error", err)
			return nil
		}
	}

	return nil
}
