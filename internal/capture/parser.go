package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrNotTranscriptRow is returned by [ParseRow] for rows that do not carry a
// caption: headers, placeholders and partially rendered items.
var ErrNotTranscriptRow = errors.New("capture: not a transcript row")

var (
	clockRE = regexp.MustCompile(`\d{2}:\d{2}:\d{2}`)
	lineRE  = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\] ([^:]*): ?(.*)$`)
)

// ParseRow parses the accessible name of a caption list item.
//
// The name has the form "<speaker> <HH:MM:SS>\n<text>"; the speaker part is
// empty on continuation rows. A non-empty speaker becomes state's current
// speaker, and an empty one is filled from it. Rows without a second line or
// without a timestamp in the header yield [ErrNotTranscriptRow].
func ParseRow(state *State, raw string) (e Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, err = Entry{}, fmt.Errorf("capture: parse row: panic: %v", r)
		}
	}()

	if raw == "" {
		return Entry{}, ErrNotTranscriptRow
	}
	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return Entry{}, ErrNotTranscriptRow
	}

	header := strings.TrimSpace(lines[0])
	loc := clockRE.FindStringIndex(header)
	if loc == nil {
		return Entry{}, ErrNotTranscriptRow
	}

	speaker := strings.TrimSpace(header[:loc[0]])
	if speaker != "" {
		state.CurrentSpeaker = speaker
	} else {
		speaker = state.CurrentSpeaker
	}

	return Entry{
		Speaker:   speaker,
		Timestamp: header[loc[0]:loc[1]],
		Content:   strings.TrimSpace(lines[1]),
	}, nil
}

// ParseLine parses one line of a persisted transcript file, the inverse of
// [Entry.String].
func ParseLine(line string) (Entry, error) {
	m := lineRE.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Entry{}, fmt.Errorf("capture: parse line %q: %w", line, ErrNotTranscriptRow)
	}
	return Entry{Timestamp: m[1], Speaker: m[2], Content: m[3]}, nil
}

// ReadTranscript parses a persisted transcript. Blank and malformed lines are
// skipped; skipped reports how many malformed lines were seen.
func ReadTranscript(r io.Reader) (entries []Entry, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, skipped, fmt.Errorf("capture: read transcript: %w", err)
	}
	return entries, skipped, nil
}

// FormatTranscript renders entries one per line, each terminated by "\n".
func FormatTranscript(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
