package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/meetnav/pkg/memory"
)

const insertEntry = `
	INSERT INTO transcript_entries (session_id, ts, speaker, content)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (session_id, ts, content) DO NOTHING`

// WriteEntries implements [memory.SessionStore]. All entries are sent in one
// batch inside a transaction.
func (s *Store) WriteEntries(ctx context.Context, sessionID string, entries []memory.TranscriptEntry) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("session store: write entries: empty session id")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	inserted := 0
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(insertEntry, sessionID, e.Timestamp, e.Speaker, e.Content)
		}
		br := tx.SendBatch(ctx, batch)
		for range entries {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("session store: write entries: %w", err)
	}
	return inserted, nil
}

// Entries implements [memory.SessionStore].
func (s *Store) Entries(ctx context.Context, sessionID string) ([]memory.TranscriptEntry, error) {
	const q = `
		SELECT session_id, ts, speaker, content, captured_at
		FROM   transcript_entries
		WHERE  session_id = $1
		ORDER  BY ts, id`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session store: entries: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %q", memory.ErrSessionNotFound, sessionID)
	}
	return entries, nil
}

// Sessions implements [memory.SessionStore].
func (s *Store) Sessions(ctx context.Context) ([]memory.SessionInfo, error) {
	const q = `
		SELECT session_id, count(*), min(captured_at), max(captured_at)
		FROM   transcript_entries
		GROUP  BY session_id
		ORDER  BY max(captured_at) DESC, session_id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("session store: sessions: %w", err)
	}
	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.SessionInfo, error) {
		var si memory.SessionInfo
		err := row.Scan(&si.ID, &si.Entries, &si.FirstSeen, &si.LastSeen)
		return si, err
	})
	if err != nil {
		return nil, fmt.Errorf("session store: scan sessions: %w", err)
	}
	if infos == nil {
		infos = []memory.SessionInfo{}
	}
	return infos, nil
}

// Search implements [memory.SessionStore]. Matching uses strpos on lowered
// text, so the query needs no LIKE escaping.
func (s *Store) Search(ctx context.Context, query string, opts ...memory.SearchOpt) ([]memory.TranscriptEntry, error) {
	p := memory.ApplySearchOpts(opts)

	args := []any{query}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"strpos(lower(content), lower($1)) > 0"}
	if p.SessionID != "" {
		conditions = append(conditions, "session_id = "+next(p.SessionID))
	}
	if p.Speaker != "" {
		conditions = append(conditions, "speaker = "+next(p.Speaker))
	}

	q := "SELECT session_id, ts, speaker, content, captured_at\n" +
		"FROM   transcript_entries\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY session_id, ts, id"
	if p.Limit > 0 {
		q += "\nLIMIT " + next(p.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("session store: search: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]memory.TranscriptEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.TranscriptEntry, error) {
		var e memory.TranscriptEntry
		err := row.Scan(&e.SessionID, &e.Timestamp, &e.Speaker, &e.Content, &e.CapturedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("session store: scan rows: %w", err)
	}
	if entries == nil {
		entries = []memory.TranscriptEntry{}
	}
	return entries, nil
}
