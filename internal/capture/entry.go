// Package capture reconciles the live caption list of a conferencing client
// into a deduplicated, time-ordered transcript.
//
// The [Reconciler] is fed a UI Automation list element on a fixed cadence. On
// the first poll it runs a [Backfill] that scrolls the list to the top and
// walks it forward page by page; afterwards only the currently visible rows
// are sampled. Every poll that adds entries rewrites the transcript file in
// full, so the file on disk always equals the sorted in-memory [Store].
//
// A Reconciler is confined to one goroutine. [Store] is safe for concurrent
// reads so that other components can snapshot the transcript.
package capture

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry is one caption line as rendered by the conferencing client.
type Entry struct {
	// Speaker is the display name. Continuation rows carry no name in the UI;
	// the parser fills them from the session's current speaker.
	Speaker string `json:"speaker"`

	// Timestamp is the HH:MM:SS time of day the client rendered. Several
	// entries may share a timestamp.
	Timestamp string `json:"timestamp"`

	// Content is the utterance text at capture time. The client revises
	// captions in place, so one utterance may be seen with several contents.
	Content string `json:"content"`
}

// Key identifies an entry in a [Store]. Which fields are populated depends on
// the store's [Identity].
type Key struct {
	Timestamp string
	Speaker   string
	Content   string
}

// Key returns the entry's identity under [IdentityDraft].
func (e Entry) Key() Key {
	return Key{Timestamp: e.Timestamp, Content: e.Content}
}

// String renders the entry as a transcript line without trailing newline:
// "[HH:MM:SS] Speaker: content".
func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp, e.Speaker, e.Content)
}

// Clock returns the entry's time of day as an offset from midnight. ok is
// false when the timestamp is not a valid HH:MM:SS time.
func (e Entry) Clock() (d time.Duration, ok bool) {
	return parseClock(e.Timestamp)
}

// parseClock parses "HH:MM:SS" into an offset from midnight.
func parseClock(ts string) (time.Duration, bool) {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, false
	}
	limits := [3]int{24, 60, 60}
	var v [3]int
	for i, p := range parts {
		if len(p) != 2 {
			return 0, false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, false
		}
		v[i] = n
	}
	return time.Duration(v[0])*time.Hour + time.Duration(v[1])*time.Minute + time.Duration(v[2])*time.Second, true
}

// Identity selects how entries are deduplicated.
type Identity string

const (
	// IdentityDraft keys entries by (timestamp, content). Every revision of a
	// caption is kept as its own entry.
	IdentityDraft Identity = "draft"

	// IdentityFinal keys entries by (timestamp, speaker). A later revision
	// replaces the earlier content in place.
	IdentityFinal Identity = "final"
)

// Valid reports whether i is a known identity mode. The empty string is
// treated as [IdentityDraft].
func (i Identity) Valid() bool {
	switch i {
	case "", IdentityDraft, IdentityFinal:
		return true
	}
	return false
}

// key returns e's identity under mode i.
func (i Identity) key(e Entry) Key {
	if i == IdentityFinal {
		return Key{Timestamp: e.Timestamp, Speaker: e.Speaker}
	}
	return e.Key()
}

// State is the per-session parsing and naming state.
type State struct {
	// InitialScanDone is set once the backfill pass has completed.
	InitialScanDone bool

	// Earliest is the earliest entry time seen, on the session's date. It
	// only names the output file.
	Earliest time.Time

	// CurrentSpeaker is the last non-empty speaker name parsed.
	CurrentSpeaker string
}

// observe tightens Earliest with e's time of day. The first observation
// anchors Earliest to today's date taken from now.
func (s *State) observe(e Entry, now time.Time) {
	clock, ok := e.Clock()
	if !ok {
		return
	}
	if s.Earliest.IsZero() {
		y, m, d := now.Date()
		s.Earliest = time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(clock)
		return
	}
	y, m, d := s.Earliest.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, s.Earliest.Location())
	if clock < s.Earliest.Sub(midnight) {
		s.Earliest = midnight.Add(clock)
	}
}
