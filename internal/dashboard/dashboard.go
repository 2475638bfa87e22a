// Package dashboard is the interactive terminal front end of meetnav.
//
// The model shows the live transcript on the left and the assistant's
// Summary, Viewpoints and Navigation panels on the right. Once per second it
// drains the capture monitor's event channel; assistant requests run as
// bubbletea commands so the UI never blocks on the model.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/meetnav/internal/assist"
	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/internal/monitor"
	"github.com/MrWong99/meetnav/internal/notify"
	"github.com/MrWong99/meetnav/internal/transcript/phonetic"
)

const (
	tickInterval   = time.Second
	requestTimeout = 3 * time.Minute

	// maxLines bounds the transcript kept for display.
	maxLines = 2000
)

// Panel indices.
const (
	panelSummary = iota
	panelViewpoints
	panelNavigation
	panelCount
)

var panelActions = [panelCount]config.Action{
	config.ActionSummarize,
	config.ActionViewpoints,
	config.ActionNavigate,
}

var panelTitles = [panelCount]string{"Summary", "Viewpoints", "Navigation"}

// ErrNoAssistant is reported when an action is requested without a
// configured LLM provider.
var ErrNoAssistant = errors.New("dashboard: no LLM provider configured")

// Deps wires the dashboard to the rest of the application. Only Events and
// Entries are required.
type Deps struct {
	// Ctx bounds assistant requests. Defaults to context.Background.
	Ctx context.Context

	// Events is the monitor's event channel.
	Events <-chan monitor.Event

	// Entries returns the current sorted transcript.
	Entries func() []capture.Entry

	// Assistant runs the actions. Nil disables them.
	Assistant *assist.Assistant

	// Live is toggled with the l key. Nil disables live mode.
	Live *assist.Live

	// Meeting returns the current meeting context.
	Meeting func() assist.Context

	// Roster returns the stakeholder roster for speaker statistics.
	Roster func() *phonetic.Roster

	// MinutesDir is where exported minutes are written.
	MinutesDir string

	// SessionID names exported minutes.
	SessionID func() string

	// Notifier receives errors. Defaults to [notify.Discard].
	Notifier notify.Notifier

	// Copy writes to the clipboard. Defaults to clipboard.WriteAll.
	Copy func(string) error

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

type panel struct {
	content   string
	updated   time.Time
	busy      bool
	collapsed bool
}

// Model is the bubbletea model.
type Model struct {
	deps Deps

	lines       []string
	lastTS      string
	lastSpeaker string

	panels  [panelCount]panel
	focus   int
	minutes bool

	attached  bool
	stopped   bool
	status    string
	statusErr bool

	width  int
	height int
}

// ResultMsg delivers an assistant result, for example from [assist.Live].
type ResultMsg assist.Result

type tickMsg time.Time

type minutesMsg struct {
	path string
	err  error
}

type copiedMsg struct {
	title string
	err   error
}

// New returns a dashboard model.
func New(deps Deps) Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Entries == nil {
		deps.Entries = func() []capture.Entry { return nil }
	}
	if deps.Meeting == nil {
		deps.Meeting = func() assist.Context { return assist.Context{} }
	}
	if deps.Roster == nil {
		deps.Roster = func() *phonetic.Roster { return nil }
	}
	if deps.SessionID == nil {
		deps.SessionID = func() string { return "" }
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard{}
	}
	if deps.Copy == nil {
		deps.Copy = clipboard.WriteAll
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return Model{deps: deps, status: "waiting for the caption window"}
}

// Init starts the refresh tick.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		m = m.drain()
		if m.stopped {
			return m, nil
		}
		return m, tick()

	case ResultMsg:
		return m.applyResult(assist.Result(msg)), nil

	case minutesMsg:
		m.minutes = false
		if msg.err != nil {
			return m.fail(fmt.Errorf("minutes: %w", msg.err)), nil
		}
		m.status, m.statusErr = "minutes saved to "+msg.path, false
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			return m.fail(fmt.Errorf("copy %s: %w", msg.title, msg.err)), nil
		}
		m.status, m.statusErr = msg.title+" copied to clipboard", false
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.focus = (m.focus + 1) % panelCount
	case "shift+tab":
		m.focus = (m.focus - 1 + panelCount) % panelCount
	case "1", "2", "3":
		i := int(msg.String()[0] - '1')
		m.panels[i].collapsed = !m.panels[i].collapsed
	case "s":
		return m.request(panelSummary)
	case "v":
		return m.request(panelViewpoints)
	case "n":
		return m.request(panelNavigation)
	case "m":
		return m.requestMinutes()
	case "l":
		return m.toggleLive(), nil
	case "c":
		return m, m.copyFocused()
	}
	return m, nil
}

// drain consumes every event currently queued.
func (m Model) drain() Model {
	if m.deps.Events == nil {
		return m
	}
	for {
		select {
		case ev, ok := <-m.deps.Events:
			if !ok {
				m.deps.Events = nil
				m.stopped = true
				m.attached = false
				return m
			}
			m = m.applyEvent(ev)
		default:
			return m
		}
	}
}

func (m Model) applyEvent(ev monitor.Event) Model {
	switch ev.Kind {
	case monitor.EventEntry:
		m.appendEntry(ev.Entry)
	case monitor.EventStatus:
		switch ev.Status {
		case monitor.StatusAttached:
			m.attached = true
		case monitor.StatusDetached, monitor.StatusStopped:
			m.attached = false
		}
		m.status, m.statusErr = statusText(ev), false
	case monitor.EventError:
		m = m.fail(ev.Err)
	}
	return m
}

func statusText(ev monitor.Event) string {
	switch ev.Status {
	case monitor.StatusDiscovering:
		return "looking for the caption window (" + ev.Detail + ")"
	case monitor.StatusAttached:
		return "capturing"
	case monitor.StatusBackfillDone:
		return "history loaded: " + ev.Detail
	case monitor.StatusDetached:
		return "caption window lost, reconnecting"
	case monitor.StatusStopped:
		return "stopped: " + ev.Detail
	}
	return string(ev.Status)
}

// appendEntry adds e as a transcript line. A line with the same timestamp
// and speaker as the last one replaces it, so growing captions update in
// place.
func (m *Model) appendEntry(e capture.Entry) {
	line := e.String()
	if len(m.lines) > 0 && e.Timestamp == m.lastTS && e.Speaker == m.lastSpeaker {
		m.lines[len(m.lines)-1] = line
		return
	}
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.lastTS, m.lastSpeaker = e.Timestamp, e.Speaker
}

func (m Model) fail(err error) Model {
	if err == nil {
		return m
	}
	m.status, m.statusErr = err.Error(), true
	if nerr := m.deps.Notifier.Notify("meetnav", err.Error()); nerr != nil {
		m.deps.Logger.Debug("dashboard: notification failed", "error", nerr)
	}
	return m
}

func (m Model) input() assist.Input {
	return assist.NewInput(m.deps.Entries(), m.deps.Meeting(), m.deps.Roster())
}

func (m Model) request(i int) (tea.Model, tea.Cmd) {
	if m.deps.Assistant == nil {
		return m.fail(ErrNoAssistant), nil
	}
	if m.panels[i].busy {
		return m, nil
	}
	m.panels[i].busy = true
	m.panels[i].collapsed = false
	in := m.input()
	a, ctx, action := m.deps.Assistant, m.deps.Ctx, panelActions[i]
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return ResultMsg(a.Run(ctx, action, in.Transcript, in.Context))
	}
}

func (m Model) applyResult(r assist.Result) Model {
	i := -1
	for p, a := range panelActions {
		if a == r.Action {
			i = p
		}
	}
	if i < 0 {
		return m
	}
	m.panels[i].busy = false
	if r.Err != nil {
		return m.fail(fmt.Errorf("%s: %w", panelTitles[i], r.Err))
	}
	m.panels[i].content = r.Content
	m.panels[i].updated = r.At
	return m
}

func (m Model) requestMinutes() (tea.Model, tea.Cmd) {
	if m.deps.Assistant == nil {
		return m.fail(ErrNoAssistant), nil
	}
	if m.minutes {
		return m, nil
	}
	m.minutes = true
	m.status, m.statusErr = "drafting minutes", false

	in := m.input()
	a, ctx, dir := m.deps.Assistant, m.deps.Ctx, m.deps.MinutesDir
	base := m.deps.SessionID()
	if base == "" {
		base = "meetnav_" + m.deps.Now().Format("20060102150405")
	}
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		md, err := a.Minutes(ctx, in.Transcript, in.Context)
		if err != nil {
			return minutesMsg{err: err}
		}
		_, htmlPath, err := assist.ExportMinutes(dir, base, md)
		return minutesMsg{path: htmlPath, err: err}
	}
}

func (m Model) toggleLive() Model {
	if m.deps.Live == nil {
		return m.fail(ErrNoAssistant)
	}
	on := !m.deps.Live.Enabled()
	m.deps.Live.SetEnabled(on)
	if on {
		m.status = fmt.Sprintf("live mode on, refreshing every %s", m.deps.Live.Interval())
	} else {
		m.status = "live mode off"
	}
	m.statusErr = false
	return m
}

func (m Model) copyFocused() tea.Cmd {
	p := m.panels[m.focus]
	title, text, copyFn := panelTitles[m.focus], p.content, m.deps.Copy
	if text == "" {
		return nil
	}
	return func() tea.Msg {
		return copiedMsg{title: title, err: copyFn(text)}
	}
}
