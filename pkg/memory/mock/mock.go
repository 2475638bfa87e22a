// Package mock provides an in-memory [memory.SessionStore] for tests.
//
// The mock behaves like the PostgreSQL store (deduplication on timestamp and
// content, ordering, case-insensitive search) and additionally records every
// call and lets tests inject errors.
//
//	store := &mock.SessionStore{}
//	store.WriteErr = errors.New("db down")
//	// inject store into the system under test …
//	if got := store.CallCount("WriteEntries"); got != 1 { … }
package mock

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/meetnav/pkg/memory"
)

var _ memory.SessionStore = (*SessionStore)(nil)

// Call records the name and arguments of a single method invocation.
type Call struct {
	Method string
	Args   []any
}

// SessionStore is an in-memory test double for [memory.SessionStore].
type SessionStore struct {
	mu sync.Mutex

	calls   []Call
	rows    []memory.TranscriptEntry
	seq     []int
	nextSeq int

	// WriteErr, EntriesErr, SessionsErr and SearchErr are returned by the
	// corresponding method when non-nil.
	WriteErr    error
	EntriesErr  error
	SessionsErr error
	SearchErr   error

	// Now stamps CapturedAt. Defaults to time.Now.
	Now func() time.Time
}

func (m *SessionStore) record(method string, args ...any) {
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of all recorded invocations.
func (m *SessionStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many times the named method was invoked.
func (m *SessionStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// WriteEntries implements [memory.SessionStore].
func (m *SessionStore) WriteEntries(_ context.Context, sessionID string, entries []memory.TranscriptEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("WriteEntries", sessionID, slices.Clone(entries))
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	if sessionID == "" {
		return 0, fmt.Errorf("mock session store: empty session id")
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	inserted := 0
	for _, e := range entries {
		dup := slices.ContainsFunc(m.rows, func(r memory.TranscriptEntry) bool {
			return r.SessionID == sessionID && r.Timestamp == e.Timestamp && r.Content == e.Content
		})
		if dup {
			continue
		}
		e.SessionID = sessionID
		e.CapturedAt = now()
		m.rows = append(m.rows, e)
		m.seq = append(m.seq, m.nextSeq)
		m.nextSeq++
		inserted++
	}
	return inserted, nil
}

// Entries implements [memory.SessionStore].
func (m *SessionStore) Entries(_ context.Context, sessionID string) ([]memory.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Entries", sessionID)
	if m.EntriesErr != nil {
		return nil, m.EntriesErr
	}
	out := m.filter(func(e memory.TranscriptEntry) bool { return e.SessionID == sessionID })
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", memory.ErrSessionNotFound, sessionID)
	}
	return out, nil
}

// Sessions implements [memory.SessionStore].
func (m *SessionStore) Sessions(context.Context) ([]memory.SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Sessions")
	if m.SessionsErr != nil {
		return nil, m.SessionsErr
	}

	byID := map[string]*memory.SessionInfo{}
	var order []string
	for _, e := range m.rows {
		si, ok := byID[e.SessionID]
		if !ok {
			si = &memory.SessionInfo{ID: e.SessionID, FirstSeen: e.CapturedAt}
			byID[e.SessionID] = si
			order = append(order, e.SessionID)
		}
		si.Entries++
		si.LastSeen = e.CapturedAt
	}
	out := make([]memory.SessionInfo, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	slices.SortStableFunc(out, func(a, b memory.SessionInfo) int {
		return cmp.Or(b.LastSeen.Compare(a.LastSeen), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Search implements [memory.SessionStore].
func (m *SessionStore) Search(_ context.Context, query string, opts ...memory.SearchOpt) ([]memory.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Search", query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	p := memory.ApplySearchOpts(opts)
	q := strings.ToLower(query)
	out := m.filter(func(e memory.TranscriptEntry) bool {
		return strings.Contains(strings.ToLower(e.Content), q) &&
			(p.SessionID == "" || e.SessionID == p.SessionID) &&
			(p.Speaker == "" || e.Speaker == p.Speaker)
	})
	slices.SortStableFunc(out, func(a, b memory.TranscriptEntry) int {
		return cmp.Compare(a.SessionID, b.SessionID)
	})
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

// filter returns matching rows ordered by timestamp, then insertion order.
// Must be called with m.mu held.
func (m *SessionStore) filter(keep func(memory.TranscriptEntry) bool) []memory.TranscriptEntry {
	type row struct {
		e   memory.TranscriptEntry
		seq int
	}
	var rows []row
	for i, e := range m.rows {
		if keep(e) {
			rows = append(rows, row{e, m.seq[i]})
		}
	}
	slices.SortFunc(rows, func(a, b row) int {
		return cmp.Or(cmp.Compare(a.e.Timestamp, b.e.Timestamp), cmp.Compare(a.seq, b.seq))
	})
	out := make([]memory.TranscriptEntry, len(rows))
	for i, r := range rows {
		out[i] = r.e
	}
	return out
}
