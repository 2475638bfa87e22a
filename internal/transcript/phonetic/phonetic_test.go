package phonetic_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/meetnav/internal/transcript/phonetic"
)

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	names := []string{"John Smith", "Alice Johnson", "Jane Doe"}
	tests := []struct {
		label       string
		want        string
		wantMatched bool
	}{
		{"John Smith", "John Smith", true},
		{"alice johnson", "Alice Johnson", true},
		{"Alice Johnson (Host)", "Alice Johnson", true},
		{"Jon Smith", "John Smith", true},
		{"Alice", "Alice Johnson", true},
		{"Zephyr Quill", "Zephyr Quill", false},
		{"", "", false},
	}
	m := phonetic.New()
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			got, conf, matched := m.Match(tt.label, names)
			if matched != tt.wantMatched || got != tt.want {
				t.Fatalf("Match(%q) = %q, %v; want %q, %v", tt.label, got, matched, tt.want, tt.wantMatched)
			}
			if matched && conf < 0.7 {
				t.Errorf("confidence = %f, want >= 0.7", conf)
			}
			if !matched && conf != 0 {
				t.Errorf("confidence = %f for no match, want 0", conf)
			}
		})
	}
}

func TestMatcher_EmptyNames(t *testing.T) {
	t.Parallel()
	got, conf, matched := phonetic.New().Match("Alice", nil)
	if matched || got != "Alice" || conf != 0 {
		t.Errorf("Match with no names = %q, %f, %v", got, conf, matched)
	}
}

func TestMatcher_StrictThreshold(t *testing.T) {
	t.Parallel()
	m := phonetic.New(phonetic.WithPhoneticThreshold(1.01), phonetic.WithFuzzyThreshold(1.01))
	if _, _, matched := m.Match("Alice Johnson", []string{"Alice Johnson"}); matched {
		t.Error("threshold above 1 should reject every match")
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"  Alice   Johnson ":   "alice johnson",
		"Bob (Guest)":          "bob",
		"Carol (Host, Me)  Ng": "carol ng",
		"(Host)":               "",
	}
	for in, want := range tests {
		if got := phonetic.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoster(t *testing.T) {
	t.Parallel()
	r := phonetic.ParseRoster("John Smith, Alice Johnson;  ; Jane Doe")
	if got := r.Names(); !slices.Equal(got, []string{"John Smith", "Alice Johnson", "Jane Doe"}) {
		t.Fatalf("Names = %v", got)
	}
	if got := r.Resolve(" Jon Smith "); got != "John Smith" {
		t.Errorf("Resolve = %q", got)
	}
	// Cached result is stable.
	if got := r.Resolve("Jon Smith"); got != "John Smith" {
		t.Errorf("Resolve (cached) = %q", got)
	}
	if got := r.Resolve("Zephyr Quill"); got != "Zephyr Quill" {
		t.Errorf("unknown speaker = %q", got)
	}

	empty := phonetic.ParseRoster("")
	if got := empty.Resolve(" Bob "); got != "Bob" {
		t.Errorf("empty roster Resolve = %q", got)
	}
}
