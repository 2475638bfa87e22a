package capture

import (
	"cmp"
	"slices"
	"sync"
)

type record struct {
	entry Entry
	seq   uint64
}

// Store holds the deduplicated transcript of one session. Entries are never
// removed. Store is safe for concurrent use.
type Store struct {
	identity Identity

	mu      sync.RWMutex
	records map[Key]*record
	seq     uint64
}

// NewStore returns an empty store that deduplicates by identity.
func NewStore(identity Identity) *Store {
	if identity == "" {
		identity = IdentityDraft
	}
	return &Store{
		identity: identity,
		records:  make(map[Key]*record),
	}
}

// Identity returns the store's deduplication mode.
func (s *Store) Identity() Identity {
	return s.identity
}

// Has reports whether an entry with e's identity is stored. Under
// [IdentityFinal] an entry whose content differs from the stored one is
// reported as absent, since putting it would change the store.
func (s *Store) Has(e Entry) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[s.identity.key(e)]
	if !ok {
		return false
	}
	return r.entry == e || s.identity == IdentityDraft
}

// Put inserts e. It reports whether the store changed: true for a new
// identity, and under [IdentityFinal] also for a revised content.
func (s *Store) Put(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.identity.key(e)
	if r, ok := s.records[k]; ok {
		if s.identity == IdentityFinal && r.entry != e {
			r.entry = e
			return true
		}
		return false
	}
	s.seq++
	s.records[k] = &record{entry: e, seq: s.seq}
	return true
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Sorted returns a snapshot of all entries ordered by time of day. Entries
// with equal times keep insertion order; unparsable timestamps sort last.
func (s *Store) Sorted() []Entry {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	out := make([]Entry, len(recs))
	slices.SortFunc(recs, compareRecords)
	for i, r := range recs {
		out[i] = r.entry
	}
	s.mu.RUnlock()
	return out
}

func compareRecords(a, b *record) int {
	ca, okA := a.entry.Clock()
	cb, okB := b.entry.Clock()
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case okA && okB && ca != cb:
		return cmp.Compare(ca, cb)
	}
	return cmp.Compare(a.seq, b.seq)
}
