// Package app wires all meetnav subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// capture pipeline, the assistant, the optional transcript mirror and the
// HTTP surface; Run executes them under one errgroup; Shutdown releases what
// New opened.
//
// For testing, inject doubles through [Providers] and the functional options
// (WithSessionStore, WithNotifier, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/meetnav/internal/assist"
	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/internal/feed"
	"github.com/MrWong99/meetnav/internal/monitor"
	"github.com/MrWong99/meetnav/internal/notify"
	"github.com/MrWong99/meetnav/internal/observe"
	"github.com/MrWong99/meetnav/internal/transcript/phonetic"
	"github.com/MrWong99/meetnav/internal/uia"
	"github.com/MrWong99/meetnav/pkg/memory"
	"github.com/MrWong99/meetnav/pkg/memory/postgres"
	"github.com/MrWong99/meetnav/pkg/provider/llm"
)

// shutdownTimeout bounds the graceful stop of the HTTP server.
const shutdownTimeout = 5 * time.Second

// Providers holds one interface value per external dependency. LLM may be
// nil, in which case the assistant is disabled. Populated by main.go.
type Providers struct {
	LLM      llm.Provider
	Finder   uia.Finder
	Keyboard uia.Keyboard
}

// UI is a blocking front end such as the dashboard. Returning ends the
// application.
type UI func(ctx context.Context) error

// App owns all subsystem lifetimes.
type App struct {
	cfg        *config.Config
	providers  *Providers
	configPath string
	level      *slog.LevelVar
	log        *slog.Logger
	metrics    *observe.Metrics
	notifier   notify.Notifier
	sleeper    capture.Sleeper

	// Subsystems, initialised in New.
	rec       *capture.Reconciler
	mon       *monitor.Monitor
	assistant *assist.Assistant
	live      *assist.Live
	hub       *feed.Hub
	sessions  memory.SessionStore
	handler   http.Handler

	mu      sync.RWMutex
	meeting assist.Context
	roster  *phonetic.Roster
	sink    func(assist.Result)

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSessionStore injects a transcript mirror instead of connecting to
// memory.postgres_dsn.
func WithSessionStore(s memory.SessionStore) Option {
	return func(a *App) { a.sessions = s }
}

// WithNotifier sets the desktop notifier. Defaults to [notify.Discard].
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithMetrics sets the metric instruments. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConfigWatch reloads path while running and applies the settings that
// can change without a restart.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithSleeper replaces the timer used for capture pauses and discovery
// backoff.
func WithSleeper(s capture.Sleeper) Option {
	return func(a *App) { a.sleeper = s }
}

// WithLevel lets config reloads change the log level of the handler built
// around lv.
func WithLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// New wires the application from cfg. It opens the transcript file location,
// the Postgres mirror when configured, and prepares but does not start the
// capture monitor and the live loop.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Finder == nil || providers.Keyboard == nil {
		return nil, errors.New("app: a window finder and a keyboard are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		log:       slog.Default(),
		notifier:  notify.Discard{},
		meeting:   assist.ContextFromConfig(cfg.Meeting),
		roster:    phonetic.ParseRoster(cfg.Meeting.KeyStakeholders),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initMemory(ctx); err != nil {
		return nil, fmt.Errorf("app: init memory: %w", err)
	}
	if err := a.initCapture(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init capture: %w", err)
	}
	a.initAssist()
	a.handler = a.buildHandler()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initMemory connects the optional Postgres mirror.
func (a *App) initMemory(ctx context.Context) error {
	if a.sessions != nil {
		return nil
	}
	dsn := a.cfg.Memory.PostgresDSN
	if dsn == "" {
		return nil
	}
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.sessions = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	a.log.Info("transcript mirror connected", "backend", "postgres")
	return nil
}

// initCapture builds the reconciler, the websocket hub and the monitor.
func (a *App) initCapture() error {
	cc := a.cfg.Capture
	recOpts := []capture.Option{capture.WithLogger(a.log)}
	monOpts := []monitor.Option{
		monitor.WithLogger(a.log),
		monitor.WithMetrics(a.metrics),
	}
	if a.sleeper != nil {
		recOpts = append(recOpts, capture.WithSleeper(a.sleeper))
		monOpts = append(monOpts, monitor.WithSleeper(a.sleeper))
	}

	rec, err := capture.NewReconciler(capture.Config{
		OutputDir:        cc.OutputDir,
		FilePrefix:       cc.FilePrefix,
		Identity:         capture.Identity(cc.Identity),
		MaxBackfillPages: cc.MaxBackfillPages,
	}, a.providers.Keyboard, recOpts...)
	if err != nil {
		return err
	}
	a.rec = rec

	a.hub = feed.NewHub(
		feed.WithLogger(a.log),
		feed.WithMetrics(a.metrics),
		feed.WithSnapshot(func() (string, []capture.Entry) {
			return a.mon.SessionID(), a.rec.Store().Sorted()
		}),
	)
	monOpts = append(monOpts, monitor.WithMirror(a.hub))

	if a.sessions != nil {
		monOpts = append(monOpts, monitor.WithMirror(StoreMirror(a.sessions)))
	}

	a.mon = monitor.New(monitor.Config{
		WindowClass:  cc.WindowClass,
		PollInterval: cc.PollInterval,
	}, a.providers.Finder, rec, monOpts...)
	return nil
}

// initAssist builds the assistant and the live loop when an LLM is present.
func (a *App) initAssist() {
	if a.providers.LLM == nil {
		a.log.Warn("no LLM provider configured, assistant disabled")
		return
	}
	a.assistant = assist.New(a.providers.LLM, a.cfg.Prompts,
		assist.WithMetrics(a.metrics),
		assist.WithLogger(a.log),
	)
	a.live = assist.NewLive(a.assistant, a.cfg.Meeting.LiveInterval, a.liveInput, a.deliver,
		assist.WithLiveLogger(a.log))
	if a.cfg.Meeting.Live {
		a.live.SetEnabled(true)
	}
}

// StoreMirror replicates added entries to store under the session ID of the
// transcript file. The store stamps the capture time.
func StoreMirror(store memory.SessionStore) capture.Mirror {
	return capture.MirrorFunc(func(ctx context.Context, sessionID string, entries []capture.Entry) error {
		rows := make([]memory.TranscriptEntry, len(entries))
		for i, e := range entries {
			rows[i] = memory.TranscriptEntry{
				SessionID: sessionID,
				Timestamp: e.Timestamp,
				Speaker:   e.Speaker,
				Content:   e.Content,
			}
		}
		_, err := store.WriteEntries(ctx, sessionID, rows)
		return err
	})
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Events returns the capture monitor's event channel.
func (a *App) Events() <-chan monitor.Event { return a.mon.Events() }

// Entries returns the current sorted transcript.
func (a *App) Entries() []capture.Entry { return a.rec.Store().Sorted() }

// SessionID returns the transcript file's base name once the first entry
// was saved.
func (a *App) SessionID() string { return a.mon.SessionID() }

// OutputDir is the directory of transcripts and exported minutes.
func (a *App) OutputDir() string { return a.rec.Dir() }

// Assistant returns nil when no LLM provider is configured.
func (a *App) Assistant() *assist.Assistant { return a.assistant }

// Live returns nil when no LLM provider is configured.
func (a *App) Live() *assist.Live { return a.live }

// Notifier returns the configured notifier.
func (a *App) Notifier() notify.Notifier { return a.notifier }

// Handler returns the HTTP surface: health, metrics, transcript and feed.
func (a *App) Handler() http.Handler { return a.handler }

// Meeting returns the current meeting context.
func (a *App) Meeting() assist.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.meeting
}

// Roster returns the stakeholder roster used for speaker statistics.
func (a *App) Roster() *phonetic.Roster {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.roster
}

// OnLiveResult routes live analysis results to fn. Without a receiver they
// are logged.
func (a *App) OnLiveResult(fn func(assist.Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = fn
}

func (a *App) liveInput() assist.Input {
	return assist.NewInput(a.Entries(), a.Meeting(), a.Roster())
}

func (a *App) deliver(r assist.Result) {
	a.mu.RLock()
	sink := a.sink
	a.mu.RUnlock()
	if sink != nil {
		sink(r)
		return
	}
	if r.Err != nil {
		a.log.Warn("live analysis failed", "action", r.Action, "error", r.Err)
		_ = a.notifier.Notify("meetnav", fmt.Sprintf("%s failed: %v", r.Action, r.Err))
		return
	}
	a.log.Info("live analysis", "action", r.Action, "content", r.Content)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts capture, live analysis, the HTTP server and the config watcher,
// then blocks until ctx is cancelled, ui returns or a component fails. With a
// nil ui the monitor events are logged instead of displayed.
func (a *App) Run(ctx context.Context, ui UI) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.mon.Run(gctx)
		if err != nil {
			return fmt.Errorf("app: capture: %w", err)
		}
		return nil
	})

	if a.live != nil {
		g.Go(func() error { return a.live.Run(gctx) })
	}

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", addr, err)
		}
		a.log.Info("http server listening", "addr", ln.Addr().String())
		g.Go(func() error { return a.serve(gctx, ln) })
	}

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.ApplyConfig, config.WithWatcherLogger(a.log))
		if err != nil {
			a.log.Warn("config reload disabled", "error", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	if ui != nil {
		g.Go(func() error {
			defer cancel()
			return ui(gctx)
		})
	} else {
		g.Go(func() error {
			a.logEvents()
			return nil
		})
	}

	a.log.Info("app running", "window_class", a.cfg.Capture.WindowClass, "assistant", a.assistant != nil)
	return g.Wait()
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn("http server shutdown", "error", err)
	}
	return nil
}

// logEvents drains the monitor events until the channel closes.
func (a *App) logEvents() {
	for ev := range a.mon.Events() {
		switch ev.Kind {
		case monitor.EventEntry:
			a.log.Debug("caption", "entry", ev.Entry.String())
		case monitor.EventStatus:
			a.log.Info("capture status", "status", ev.Status, "detail", ev.Detail)
		case monitor.EventError:
			a.log.Warn("capture error", "detail", ev.Detail, "error", ev.Err)
		}
	}
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable part of a config change: log
// level, meeting context, live analysis settings and prompts. Everything
// else is logged as needing a restart.
func (a *App) ApplyConfig(old, cfg *config.Config) {
	d := config.Diff(old, cfg)
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Slog())
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.MeetingChanged {
		a.mu.Lock()
		a.meeting = assist.ContextFromConfig(cfg.Meeting)
		a.roster = phonetic.ParseRoster(cfg.Meeting.KeyStakeholders)
		a.mu.Unlock()
		a.log.Info("meeting context reloaded", "topic", cfg.Meeting.Topic)
	}

	if d.LiveChanged && a.live != nil {
		a.live.SetInterval(cfg.Meeting.LiveInterval)
		if a.live.Enabled() != cfg.Meeting.Live {
			a.live.SetEnabled(cfg.Meeting.Live)
		}
		a.log.Info("live analysis reloaded", "enabled", cfg.Meeting.Live, "interval", cfg.Meeting.LiveInterval)
	}

	if len(d.PromptsChanged) > 0 && a.assistant != nil {
		a.assistant.SetPrompts(cfg.Prompts)
		a.log.Info("prompts reloaded", "actions", d.PromptsChanged)
	}

	if len(d.RestartRequired) > 0 {
		a.log.Warn("config changes need a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases what New opened. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
}
