package capture

import (
	"testing"
)

func TestStore_DraftKeepsRevisions(t *testing.T) {
	t.Parallel()

	s := NewStore(IdentityDraft)
	if !s.Put(Entry{Speaker: "Bob", Timestamp: "10:00:05", Content: "draft"}) {
		t.Fatal("first put reported no change")
	}
	if !s.Put(Entry{Speaker: "Bob", Timestamp: "10:00:05", Content: "final"}) {
		t.Fatal("revision reported no change")
	}
	if s.Put(Entry{Speaker: "Bob", Timestamp: "10:00:05", Content: "final"}) {
		t.Fatal("duplicate reported a change")
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	got := s.Sorted()
	if got[0].Content != "draft" || got[1].Content != "final" {
		t.Errorf("Sorted = %+v, want draft then final", got)
	}
}

func TestStore_FinalReplacesRevision(t *testing.T) {
	t.Parallel()

	s := NewStore(IdentityFinal)
	draft := Entry{Speaker: "Bob", Timestamp: "10:00:05", Content: "draft"}
	final := Entry{Speaker: "Bob", Timestamp: "10:00:05", Content: "final"}

	s.Put(draft)
	if s.Has(final) {
		t.Error("Has(final) = true before the revision was stored")
	}
	if !s.Put(final) {
		t.Fatal("revision reported no change")
	}
	if s.Put(final) {
		t.Fatal("repeated revision reported a change")
	}
	if !s.Has(final) {
		t.Error("Has(final) = false after put")
	}

	got := s.Sorted()
	if len(got) != 1 || got[0] != final {
		t.Fatalf("Sorted = %+v, want only %+v", got, final)
	}
}

func TestStore_SortedOrder(t *testing.T) {
	t.Parallel()

	s := NewStore("")
	if s.Identity() != IdentityDraft {
		t.Fatalf("default identity = %q, want draft", s.Identity())
	}
	for _, e := range []Entry{
		{Speaker: "B", Timestamp: "10:00:00", Content: "second"},
		{Speaker: "X", Timestamp: "99:00:00", Content: "invalid"},
		{Speaker: "A", Timestamp: "09:59:00", Content: "first"},
		{Speaker: "B", Timestamp: "10:00:00", Content: "third"},
		{Speaker: "C", Timestamp: "23:59:59", Content: "last valid"},
	} {
		s.Put(e)
	}

	want := []string{"first", "second", "third", "last valid", "invalid"}
	got := s.Sorted()
	if len(got) != len(want) {
		t.Fatalf("Sorted returned %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("Sorted[%d] = %q, want %q", i, got[i].Content, w)
		}
	}
}

func TestIdentityValid(t *testing.T) {
	t.Parallel()
	for _, id := range []Identity{"", IdentityDraft, IdentityFinal} {
		if !id.Valid() {
			t.Errorf("Identity(%q).Valid() = false", id)
		}
	}
	if Identity("latest").Valid() {
		t.Error(`Identity("latest").Valid() = true`)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		ok   bool
		secs int
	}{
		{"00:00:00", true, 0},
		{"10:00:01", true, 36001},
		{"23:59:59", true, 86399},
		{"24:00:00", false, 0},
		{"10:60:00", false, 0},
		{"1:00:00", false, 0},
		{"", false, 0},
	}
	for _, tt := range tests {
		d, ok := parseClock(tt.in)
		if ok != tt.ok {
			t.Errorf("parseClock(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && int(d.Seconds()) != tt.secs {
			t.Errorf("parseClock(%q) = %v, want %ds", tt.in, d, tt.secs)
		}
	}
}
