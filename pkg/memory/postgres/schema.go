// Package postgres mirrors captured transcripts into PostgreSQL.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	n, err := store.WriteEntries(ctx, "zoom_20240305095900", entries)
//	all, err := store.Entries(ctx, "zoom_20240305095900")
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscriptEntries = `
CREATE TABLE IF NOT EXISTS transcript_entries (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL,
    ts           TEXT         NOT NULL,
    speaker      TEXT         NOT NULL DEFAULT '',
    content      TEXT         NOT NULL,
    captured_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_transcript_entries_identity
    ON transcript_entries (session_id, ts, content);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_session_ts
    ON transcript_entries (session_id, ts, id);
`

// Migrate creates the transcript_entries table and its indexes. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlTranscriptEntries); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
