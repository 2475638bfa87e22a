// Package memory defines the long-term transcript store that mirrors the
// captions meetnav captures.
//
// The local transcript file stays the source of truth. A [SessionStore]
// receives the same entries so that transcripts from many meetings can be
// listed, re-read and searched later. Sessions are identified by the base
// name of their transcript file (e.g. "zoom_20240305095900").
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by [SessionStore.Entries] when no entry has
// been stored for the session.
var ErrSessionNotFound = errors.New("memory: session not found")

// SessionStore persists transcript entries per meeting session.
type SessionStore interface {
	// WriteEntries stores entries under sessionID. Entries already stored
	// with the same timestamp and content are skipped, so re-sending a batch
	// is harmless. It returns the number of rows actually inserted.
	WriteEntries(ctx context.Context, sessionID string, entries []TranscriptEntry) (int, error)

	// Entries returns the session's entries ordered by timestamp, then by
	// capture order.
	Entries(ctx context.Context, sessionID string) ([]TranscriptEntry, error)

	// Sessions lists the stored sessions, most recent first.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	// Search returns entries whose content contains query, case-insensitively.
	// Returns an empty (non-nil) slice when nothing matches.
	Search(ctx context.Context, query string, opts ...SearchOpt) ([]TranscriptEntry, error)
}
