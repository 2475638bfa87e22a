package assist

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/transcript/phonetic"
)

// SpeakerStat counts one participant's contributions.
type SpeakerStat struct {
	Speaker    string
	Utterances int
	Words      int
}

// SpeakerStats counts utterances and words per speaker. Speaker labels are
// resolved through roster so that caption spellings of the same stakeholder
// are merged; roster may be nil. The result is ordered by word count,
// largest first.
func SpeakerStats(entries []capture.Entry, roster *phonetic.Roster) []SpeakerStat {
	idx := make(map[string]int)
	var stats []SpeakerStat
	for _, e := range entries {
		name := strings.TrimSpace(e.Speaker)
		if roster != nil {
			name = roster.Resolve(name)
		}
		if name == "" {
			name = "Unknown"
		}
		i, ok := idx[name]
		if !ok {
			i = len(stats)
			idx[name] = i
			stats = append(stats, SpeakerStat{Speaker: name})
		}
		stats[i].Utterances++
		stats[i].Words += len(strings.Fields(e.Content))
	}
	slices.SortStableFunc(stats, func(a, b SpeakerStat) int {
		return cmp.Compare(b.Words, a.Words)
	})
	return stats
}

// FormatSpeakerStats renders stats as one line per speaker with the share of
// words spoken, e.g. "Alice: 12 utterances, 340 words (61%)".
func FormatSpeakerStats(stats []SpeakerStat) string {
	total := 0
	for _, s := range stats {
		total += s.Words
	}
	var b strings.Builder
	for _, s := range stats {
		share := 0
		if total > 0 {
			share = s.Words * 100 / total
		}
		fmt.Fprintf(&b, "%s: %d utterances, %d words (%d%%)\n", s.Speaker, s.Utterances, s.Words, share)
	}
	return strings.TrimRight(b.String(), "\n")
}
