package assist

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/transcript/phonetic"
)

func TestSpeakerStats(t *testing.T) {
	t.Parallel()
	entries := []capture.Entry{
		{Timestamp: "10:00:01", Speaker: "Jon Smith", Content: "one two three"},
		{Timestamp: "10:00:05", Speaker: "Maria (Host)", Content: "hello"},
		{Timestamp: "10:00:09", Speaker: "John Smith", Content: "four five"},
		{Timestamp: "10:00:12", Speaker: "", Content: "who said this"},
	}

	t.Run("with roster", func(t *testing.T) {
		t.Parallel()
		got := SpeakerStats(entries, phonetic.ParseRoster("John Smith; Maria"))
		want := []SpeakerStat{
			{Speaker: "John Smith", Utterances: 2, Words: 5},
			{Speaker: "Unknown", Utterances: 1, Words: 3},
			{Speaker: "Maria", Utterances: 1, Words: 1},
		}
		if !slices.Equal(got, want) {
			t.Errorf("SpeakerStats = %+v\nwant %+v", got, want)
		}
	})

	t.Run("without roster", func(t *testing.T) {
		t.Parallel()
		got := SpeakerStats(entries, nil)
		if len(got) != 4 {
			t.Fatalf("SpeakerStats = %+v, want 4 distinct speakers", got)
		}
		if got[0].Speaker != "Jon Smith" {
			t.Errorf("top speaker = %q", got[0].Speaker)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		if got := SpeakerStats(nil, nil); len(got) != 0 {
			t.Errorf("SpeakerStats(nil) = %+v", got)
		}
	})
}

func TestFormatSpeakerStats(t *testing.T) {
	t.Parallel()
	got := FormatSpeakerStats([]SpeakerStat{
		{Speaker: "Alice", Utterances: 3, Words: 30},
		{Speaker: "Bob", Utterances: 1, Words: 10},
	})
	want := "Alice: 3 utterances, 30 words (75%)\nBob: 1 utterances, 10 words (25%)"
	if got != want {
		t.Errorf("FormatSpeakerStats =\n%s\nwant\n%s", got, want)
	}
	if got := FormatSpeakerStats([]SpeakerStat{{Speaker: "Silent", Utterances: 1}}); !strings.HasSuffix(got, "(0%)") {
		t.Errorf("zero words = %q", got)
	}
}

func TestExportMinutes(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")
	md := "# Minutes\n\n| Owner | Item |\n|---|---|\n| Bob | Finish QA |\n\n- [x] ship date agreed\n"

	mdPath, htmlPath, err := ExportMinutes(dir, "zoom_20261018100000", md)
	if err != nil {
		t.Fatalf("ExportMinutes: %v", err)
	}
	if mdPath != filepath.Join(dir, "zoom_20261018100000_minutes.md") {
		t.Errorf("md path = %s", mdPath)
	}
	if htmlPath != filepath.Join(dir, "zoom_20261018100000_minutes.html") {
		t.Errorf("html path = %s", htmlPath)
	}

	gotMD, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(gotMD) != md {
		t.Errorf("markdown = %q", gotMD)
	}

	gotHTML, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<title>zoom_20261018100000 minutes</title>",
		"<h1>Minutes</h1>",
		"<table>",
		"<td>Finish QA</td>",
		`type="checkbox"`,
	} {
		if !strings.Contains(string(gotHTML), want) {
			t.Errorf("html lacks %q:\n%s", want, gotHTML)
		}
	}
}

func TestNewInput(t *testing.T) {
	t.Parallel()
	entries := []capture.Entry{
		{Timestamp: "10:00:01", Speaker: "Alice", Content: "Ship Friday"},
		{Timestamp: "10:00:03", Speaker: "Bob", Content: "No"},
	}
	in := NewInput(entries, Context{Topic: "Release"}, nil)
	if in.Transcript != "[10:00:01] Alice: Ship Friday\n[10:00:03] Bob: No\n" {
		t.Errorf("Transcript = %q", in.Transcript)
	}
	if in.Context.Topic != "Release" || !strings.HasPrefix(in.Context.SpeakerStats, "Alice: 1 utterances, 2 words (66%)") {
		t.Errorf("Context = %+v", in.Context)
	}
	if empty := NewInput(nil, Context{}, nil); empty.Transcript != "" || empty.Context.SpeakerStats != "" {
		t.Errorf("NewInput(nil) = %+v", empty)
	}
}
