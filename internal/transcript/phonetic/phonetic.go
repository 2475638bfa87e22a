// Package phonetic resolves caption speaker labels to the canonical names of
// known meeting participants.
//
// Caption speaker labels drift: "Jon Smith (Guest)", "john smith" and
// "John Smith" may all refer to one stakeholder. [Matcher] scores a label
// against a list of names in two stages:
//
//  1. Phonetic filtering: Double Metaphone codes are computed per token; a
//     name whose codes overlap the label's codes is a phonetic candidate and
//     is accepted above the phonetic threshold (default 0.70).
//  2. Fuzzy fallback: without a phonetic candidate, a name is accepted on
//     Jaro-Winkler similarity alone above the fuzzy threshold (default 0.85).
//
// [Roster] wraps a Matcher with a fixed name list and a resolution cache.
package phonetic

import (
	"regexp"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a phonetic
// candidate.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no phonetic
// candidate exists.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the name from names that best matches label. When nothing
// matches, it returns label unchanged, zero confidence and false.
func (m *Matcher) Match(label string, names []string) (name string, confidence float64, matched bool) {
	in := Normalize(label)
	if len(names) == 0 || in == "" {
		return label, 0, false
	}
	inTokens := strings.Fields(in)
	inCodes := metaphoneCodes(inTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, candidate := range names {
		c := Normalize(candidate)
		if c == "" {
			continue
		}
		cTokens := strings.Fields(c)
		score := similarity(inTokens, cTokens, in, c)

		if overlaps(inCodes, metaphoneCodes(cTokens)) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = candidate, score, true
			}
			continue
		}
		if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = candidate, score
		}
	}

	if best == "" {
		return label, 0, false
	}
	return best, bestScore, true
}

var parenthetical = regexp.MustCompile(`\([^)]*\)`)

// Normalize lower-cases label, drops parenthetical suffixes such as "(Host)"
// and collapses whitespace.
func Normalize(label string) string {
	label = parenthetical.ReplaceAllString(label, " ")
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score over the full strings, the
// space-stripped strings and every token pair. The token pairs let a first
// name alone match a full name.
func similarity(aTokens, bTokens []string, a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)
	if len(aTokens) > 1 || len(bTokens) > 1 {
		score = max(score, matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false))
	}
	for _, x := range aTokens {
		for _, y := range bTokens {
			score = max(score, matchr.JaroWinkler(x, y, false))
		}
	}
	return score
}

// Roster resolves speaker labels against a fixed list of names. It is safe
// for concurrent use.
type Roster struct {
	names   []string
	matcher *Matcher

	mu    sync.Mutex
	cache map[string]string
}

// NewRoster returns a Roster over names. Blank names are dropped.
func NewRoster(names []string, opts ...Option) *Roster {
	r := &Roster{matcher: New(opts...), cache: make(map[string]string)}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			r.names = append(r.names, n)
		}
	}
	return r
}

// ParseRoster splits a comma or semicolon separated list such as the
// meeting's key stakeholders.
func ParseRoster(list string, opts ...Option) *Roster {
	return NewRoster(strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ';' }), opts...)
}

// Names returns the canonical names.
func (r *Roster) Names() []string {
	return append([]string(nil), r.names...)
}

// Resolve returns the canonical name for label, or label trimmed when no
// roster name matches.
func (r *Roster) Resolve(label string) string {
	label = strings.TrimSpace(label)
	if len(r.names) == 0 || label == "" {
		return label
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.cache[label]; ok {
		return name
	}
	name, _, _ := r.matcher.Match(label, r.names)
	r.cache[label] = name
	return name
}
