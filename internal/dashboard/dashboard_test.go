package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/meetnav/internal/assist"
	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/internal/monitor"
	notifymock "github.com/MrWong99/meetnav/internal/notify/mock"
	llm "github.com/MrWong99/meetnav/pkg/provider/llm"
	llmmock "github.com/MrWong99/meetnav/pkg/provider/llm/mock"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	got, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return got, cmd
}

var entries = []capture.Entry{
	{Timestamp: "10:00:01", Speaker: "Alice", Content: "We ship Friday."},
	{Timestamp: "10:00:07", Speaker: "Bob", Content: "QA disagrees."},
}

func newAssistant(p *llmmock.Provider) *assist.Assistant {
	return assist.New(p, config.DefaultPrompts(), assist.WithLogger(quiet()))
}

func TestModel_DrainsEvents(t *testing.T) {
	t.Parallel()
	events := make(chan monitor.Event, 8)
	notifier := &notifymock.Notifier{}
	m := New(Deps{Events: events, Notifier: notifier, Logger: quiet()})

	events <- monitor.Event{Kind: monitor.EventStatus, Status: monitor.StatusAttached}
	events <- monitor.Event{Kind: monitor.EventEntry, Entry: capture.Entry{Timestamp: "10:00:01", Speaker: "Alice", Content: "We"}}
	events <- monitor.Event{Kind: monitor.EventEntry, Entry: capture.Entry{Timestamp: "10:00:01", Speaker: "Alice", Content: "We ship Friday."}}
	events <- monitor.Event{Kind: monitor.EventEntry, Entry: capture.Entry{Timestamp: "10:00:07", Speaker: "Bob", Content: "QA disagrees."}}
	events <- monitor.Event{Kind: monitor.EventError, Err: errors.New("db down"), Detail: "mirror"}

	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick not rescheduled")
	}
	want := []string{"[10:00:01] Alice: We ship Friday.", "[10:00:07] Bob: QA disagrees."}
	if strings.Join(m.lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("lines = %q, want %q", m.lines, want)
	}
	if !m.attached {
		t.Error("attached = false after attach status")
	}
	if !m.statusErr || m.status != "db down" {
		t.Errorf("status = %q (err %v)", m.status, m.statusErr)
	}
	if msgs := notifier.Messages(); len(msgs) != 1 || msgs[0].Message != "db down" {
		t.Errorf("notifications = %v", msgs)
	}

	events <- monitor.Event{Kind: monitor.EventStatus, Status: monitor.StatusStopped, Detail: "2 entries saved"}
	close(events)
	m, cmd = update(t, m, tickMsg(time.Now()))
	if cmd != nil {
		t.Error("tick rescheduled after the event channel closed")
	}
	if !m.stopped || m.attached {
		t.Errorf("stopped = %v, attached = %v", m.stopped, m.attached)
	}
}

func TestModel_SameSpeakerDifferentTimeAppends(t *testing.T) {
	t.Parallel()
	m := New(Deps{Logger: quiet()})
	m.appendEntry(capture.Entry{Timestamp: "10:00:01", Speaker: "Alice", Content: "a"})
	m.appendEntry(capture.Entry{Timestamp: "10:00:02", Speaker: "Alice", Content: "b"})
	m.appendEntry(capture.Entry{Timestamp: "10:00:02", Speaker: "Bob", Content: "c"})
	if len(m.lines) != 3 {
		t.Errorf("lines = %q, want 3", m.lines)
	}
}

func TestModel_SummarizeRoundTrip(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Ship date contested."}}
	m := New(Deps{
		Assistant: newAssistant(p),
		Entries:   func() []capture.Entry { return entries },
		Meeting:   func() assist.Context { return assist.Context{Topic: "Release", Language: "En"} },
		Logger:    quiet(),
	})
	m.panels[panelSummary].collapsed = true

	m, cmd := update(t, m, key("s"))
	if cmd == nil {
		t.Fatal("s returned no command")
	}
	if !m.panels[panelSummary].busy || m.panels[panelSummary].collapsed {
		t.Errorf("panel = %+v, want busy and expanded", m.panels[panelSummary])
	}

	// A second press while busy does nothing.
	if _, again := update(t, m, key("s")); again != nil {
		t.Error("duplicate request while busy")
	}

	msg := cmd()
	res, ok := msg.(ResultMsg)
	if !ok {
		t.Fatalf("command returned %T", msg)
	}
	if !strings.Contains(p.Calls()[0].Req.Messages[0].Content, "[10:00:07] Bob: QA disagrees.") {
		t.Error("transcript not sent")
	}

	m, _ = update(t, m, res)
	got := m.panels[panelSummary]
	if got.busy || got.content != "Ship date contested." || got.updated.IsZero() {
		t.Errorf("panel after result = %+v", got)
	}
}

func TestModel_ActionErrors(t *testing.T) {
	t.Parallel()

	t.Run("no assistant", func(t *testing.T) {
		t.Parallel()
		notifier := &notifymock.Notifier{}
		m := New(Deps{Notifier: notifier, Logger: quiet()})
		for _, k := range []string{"s", "v", "n", "m", "l"} {
			var cmd tea.Cmd
			m, cmd = update(t, m, key(k))
			if cmd != nil {
				t.Errorf("%s: got a command without assistant", k)
			}
		}
		if !m.statusErr || !strings.Contains(m.status, "no LLM provider") {
			t.Errorf("status = %q", m.status)
		}
		if len(notifier.Messages()) != 5 {
			t.Errorf("notifications = %d, want 5", len(notifier.Messages()))
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()
		p := &llmmock.Provider{CompleteErr: errors.New("quota exceeded")}
		m := New(Deps{Assistant: newAssistant(p), Entries: func() []capture.Entry { return entries }, Logger: quiet()})
		m, cmd := update(t, m, key("v"))
		m, _ = update(t, m, cmd())
		if m.panels[panelViewpoints].busy {
			t.Error("panel still busy after failure")
		}
		if !m.statusErr || !strings.Contains(m.status, "Viewpoints") || !strings.Contains(m.status, "quota exceeded") {
			t.Errorf("status = %q", m.status)
		}
	})

	t.Run("empty transcript", func(t *testing.T) {
		t.Parallel()
		p := &llmmock.Provider{}
		m := New(Deps{Assistant: newAssistant(p), Logger: quiet()})
		m, cmd := update(t, m, key("n"))
		m, _ = update(t, m, cmd())
		if !strings.Contains(m.status, assist.ErrEmptyTranscript.Error()) {
			t.Errorf("status = %q", m.status)
		}
		if len(p.Calls()) != 0 {
			t.Error("provider called for an empty transcript")
		}
	})
}

func TestModel_Minutes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "# Minutes\n\n- Ship Friday"}}
	m := New(Deps{
		Assistant:  newAssistant(p),
		Entries:    func() []capture.Entry { return entries },
		MinutesDir: dir,
		SessionID:  func() string { return "zoom_20261018100000" },
		Logger:     quiet(),
	})

	m, cmd := update(t, m, key("m"))
	if cmd == nil || !m.minutes {
		t.Fatal("minutes not started")
	}
	m, _ = update(t, m, cmd())
	if m.minutes || m.statusErr {
		t.Fatalf("status = %q (err %v)", m.status, m.statusErr)
	}
	htmlPath := filepath.Join(dir, "zoom_20261018100000_minutes.html")
	if !strings.HasSuffix(m.status, htmlPath) {
		t.Errorf("status = %q", m.status)
	}
	if _, err := os.Stat(filepath.Join(dir, "zoom_20261018100000_minutes.md")); err != nil {
		t.Errorf("markdown minutes missing: %v", err)
	}
}

func TestModel_LiveToggle(t *testing.T) {
	t.Parallel()
	a := newAssistant(&llmmock.Provider{})
	live := assist.NewLive(a, 30*time.Second, func() assist.Input { return assist.Input{} }, func(assist.Result) {},
		assist.WithLiveLogger(quiet()))
	m := New(Deps{Assistant: a, Live: live, Logger: quiet()})

	m, _ = update(t, m, key("l"))
	if !live.Enabled() || !strings.Contains(m.status, "live mode on") {
		t.Errorf("after l: enabled = %v, status = %q", live.Enabled(), m.status)
	}
	m, _ = update(t, m, key("l"))
	if live.Enabled() || m.status != "live mode off" {
		t.Errorf("after second l: enabled = %v, status = %q", live.Enabled(), m.status)
	}
}

func TestModel_FocusFoldAndCopy(t *testing.T) {
	t.Parallel()
	var copied string
	m := New(Deps{Copy: func(s string) error { copied = s; return nil }, Logger: quiet()})
	m.panels[panelViewpoints].content = "Alice: ship. Bob: wait."

	if _, cmd := update(t, m, key("c")); cmd != nil {
		t.Error("copying an empty panel returned a command")
	}

	m, _ = update(t, m, key("tab"))
	if m.focus != panelViewpoints {
		t.Fatalf("focus = %d", m.focus)
	}
	m, cmd := update(t, m, key("c"))
	m, _ = update(t, m, cmd())
	if copied != "Alice: ship. Bob: wait." || m.status != "Viewpoints copied to clipboard" {
		t.Errorf("copied = %q, status = %q", copied, m.status)
	}

	m, _ = update(t, m, key("3"))
	if !m.panels[panelNavigation].collapsed {
		t.Error("3 did not fold Navigation")
	}
	m, _ = update(t, m, key("3"))
	if m.panels[panelNavigation].collapsed {
		t.Error("3 did not unfold Navigation")
	}

	m, _ = update(t, m, key("tab"))
	m, _ = update(t, m, key("tab"))
	if m.focus != panelSummary {
		t.Errorf("focus did not wrap: %d", m.focus)
	}
}

func TestModel_Quit(t *testing.T) {
	t.Parallel()
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := update(t, New(Deps{Logger: quiet()}), key(k))
		if cmd == nil {
			t.Fatalf("%s: no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: command is not tea.Quit", k)
		}
	}
}

func TestModel_View(t *testing.T) {
	t.Parallel()
	m := New(Deps{Logger: quiet()})
	if m.View() != "Starting..." {
		t.Errorf("View before size = %q", m.View())
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m.appendEntry(entries[0])
	m.panels[panelSummary].content = "Decisions pending."
	m.panels[panelNavigation].collapsed = true
	out := m.View()
	for _, want := range []string{"meetnav", "Transcript", "Alice: We ship Friday.", "1 Summary", "Decisions pending.", "3 Navigation", "q quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("View lacks %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("hello world", 20); got != "hello world" {
		t.Errorf("short = %q", got)
	}
	if got := truncate("hello world", 6); got != "hello…" {
		t.Errorf("long = %q", got)
	}
}

func TestDeps_Defaults(t *testing.T) {
	t.Parallel()
	m := New(Deps{})
	if m.deps.Ctx != context.Background() || m.deps.Notifier == nil || m.deps.Copy == nil {
		t.Error("defaults not applied")
	}
	if m.Init() == nil {
		t.Error("Init returned no tick")
	}
}
