package memory

import "time"

// TranscriptEntry is one caption line as stored in the mirror.
type TranscriptEntry struct {
	// SessionID is filled in by reads; writers pass it separately.
	SessionID string

	// Timestamp is the caption's time of day as rendered (HH:MM:SS).
	Timestamp string

	Speaker string
	Content string

	// CapturedAt is when the mirror received the entry.
	CapturedAt time.Time
}

// SessionInfo summarises one stored session.
type SessionInfo struct {
	ID        string
	Entries   int
	FirstSeen time.Time
	LastSeen  time.Time
}
