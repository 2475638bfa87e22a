// Package monitor drives transcript capture: it locates the caption list of
// the conferencing application, polls it through a [capture.Reconciler] on a
// fixed cadence and publishes the results as [Event] values.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/observe"
	"github.com/MrWong99/meetnav/internal/uia"
)

// Defaults applied by [New] to zero [Config] fields.
const (
	DefaultPollInterval = time.Second
	DefaultMinBackoff   = time.Second
	DefaultMaxBackoff   = 30 * time.Second
	DefaultEventBuffer  = 256
	mirrorTimeout       = 10 * time.Second
)

// Config tunes a [Monitor].
type Config struct {
	// WindowClass identifies the caption window.
	WindowClass string

	// PollInterval is the steady-state cadence.
	PollInterval time.Duration

	// MinBackoff and MaxBackoff bound the exponential discovery retry delay.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// EventBuffer is the capacity of the event channel. Events that do not
	// fit are dropped.
	EventBuffer int
}

// Option configures a [Monitor].
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithMetrics sets the metric instruments. Defaults to [observe.DefaultMetrics].
func WithMetrics(metrics *observe.Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// WithMirror adds a mirror that receives added entries after every merge.
func WithMirror(mirror capture.Mirror) Option {
	return func(m *Monitor) { m.mirrors = append(m.mirrors, mirror) }
}

// WithSleeper replaces the discovery backoff timer.
func WithSleeper(s capture.Sleeper) Option {
	return func(m *Monitor) { m.sleeper = s }
}

// Monitor owns the capture goroutine. The reconciler is confined to
// [Monitor.Run]; other goroutines observe progress through [Monitor.Events]
// and the reconciler's store.
type Monitor struct {
	cfg     Config
	finder  uia.Finder
	rec     *capture.Reconciler
	mirrors []capture.Mirror
	sleeper capture.Sleeper
	metrics *observe.Metrics
	log     *slog.Logger

	events   chan Event
	attached atomic.Bool
	dropped  atomic.Int64
	session  atomic.Value
}

// New creates a monitor that finds windows with finder and feeds rec.
func New(cfg Config, finder uia.Finder, rec *capture.Reconciler, opts ...Option) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.MinBackoff)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	m := &Monitor{
		cfg:     cfg,
		finder:  finder,
		rec:     rec,
		sleeper: capture.TimerSleeper,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	m.events = make(chan Event, cfg.EventBuffer)
	return m
}

// Events returns the event channel. It is closed when [Monitor.Run] returns.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Attached reports whether the caption list is currently attached.
func (m *Monitor) Attached() bool {
	return m.attached.Load()
}

// SessionID returns the capture session's ID, the transcript file's base
// name. It is empty until the first entry has been saved. Safe to call from
// any goroutine.
func (m *Monitor) SessionID() string {
	id, _ := m.session.Load().(string)
	return id
}

// Dropped returns how many events were discarded because the channel was
// full.
func (m *Monitor) Dropped() int64 {
	return m.dropped.Load()
}

// Run captures until ctx is cancelled, then flushes the transcript and closes
// the event channel. It returns nil on cancellation and an error only when
// capture cannot work at all (e.g. [uia.ErrUnsupported]).
//
// Run locks its goroutine to the OS thread because the UI automation backend
// is bound to the thread that initialised it.
func (m *Monitor) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(m.events)
	defer m.shutdown()

	for {
		list, err := m.discover(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		m.attached.Store(true)
		m.publishStatus(StatusAttached, m.cfg.WindowClass)
		m.log.Info("monitor: caption list attached", "window_class", m.cfg.WindowClass)

		err = m.pollLoop(ctx, list)
		list.Release()
		m.attached.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		m.log.Warn("monitor: caption list lost, rediscovering", "error", err)
		m.publishStatus(StatusDetached, err.Error())
	}
}

// discover retries until the list is found, backing off exponentially.
func (m *Monitor) discover(ctx context.Context) (uia.Element, error) {
	backoff := m.cfg.MinBackoff
	for attempt := 1; ; attempt++ {
		m.publishStatus(StatusDiscovering, fmt.Sprintf("attempt %d", attempt))

		list, err := m.findList(ctx)
		if err == nil {
			return list, nil
		}
		if errors.Is(err, uia.ErrUnsupported) {
			return nil, fmt.Errorf("monitor: discover: %w", err)
		}
		m.log.Debug("monitor: caption list not found", "attempt", attempt, "retry_in", backoff, "error", err)

		if err := m.sleeper.Sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff = min(backoff*2, m.cfg.MaxBackoff)
	}
}

func (m *Monitor) findList(ctx context.Context) (uia.Element, error) {
	win, err := m.finder.FindWindow(ctx, m.cfg.WindowClass)
	if err != nil {
		return nil, err
	}
	list, err := uia.FindFirst(win, uia.List)
	if list != win {
		win.Release()
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

// pollLoop polls immediately and then on every tick. It returns when ctx is
// done or the list element is gone.
func (m *Monitor) pollLoop(ctx context.Context, list uia.Element) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := m.pollOnce(ctx, list); errors.Is(err, uia.ErrElementGone) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context, list uia.Element) error {
	backfill := !m.rec.State().InitialScanDone
	start := time.Now()
	added, err := m.rec.Poll(ctx, list)
	elapsed := time.Since(start)

	for _, e := range added {
		m.publish(Event{Kind: EventEntry, Entry: e})
	}
	if len(added) > 0 {
		m.session.Store(m.rec.SessionID())
		m.mirror(ctx, added)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.metrics.RecordPoll(ctx, elapsed, len(added), err)
	if backfill && m.rec.State().InitialScanDone {
		m.metrics.BackfillDuration.Record(ctx, elapsed.Seconds())
		m.log.Info("monitor: backfill done", "entries", len(added), "pages", m.rec.Backfill().Pages(), "elapsed", elapsed)
		m.publishStatus(StatusBackfillDone, fmt.Sprintf("%d entries", len(added)))
	}

	if err != nil {
		if errors.Is(err, capture.ErrPersist) {
			m.metrics.RecordPersistError(ctx, "file")
		}
		m.log.Warn("monitor: poll failed", "error", err)
		m.publish(Event{Kind: EventError, Err: err, Detail: "capture"})
	}
	return err
}

func (m *Monitor) mirror(ctx context.Context, added []capture.Entry) {
	session := m.SessionID()
	for _, mir := range m.mirrors {
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
		err := mir.Mirror(mctx, session, added)
		cancel()
		if err != nil {
			m.metrics.RecordPersistError(ctx, "mirror")
			m.log.Warn("monitor: mirror failed", "session", session, "error", err)
			m.publish(Event{Kind: EventError, Err: err, Detail: "mirror"})
		}
	}
}

func (m *Monitor) shutdown() {
	n := m.rec.Store().Len()
	if n == 0 {
		m.log.Info("monitor: stopped, nothing captured")
		m.publishStatus(StatusStopped, "nothing captured")
		return
	}
	if err := m.rec.Flush(); err != nil {
		m.metrics.RecordPersistError(context.Background(), "file")
		m.log.Error("monitor: final flush failed", "error", err)
		m.publish(Event{Kind: EventError, Err: err, Detail: "flush"})
	}
	m.log.Info("monitor: stopped", "entries", n, "path", m.rec.Path())
	m.publishStatus(StatusStopped, fmt.Sprintf("%d entries saved to %s", n, m.rec.Path()))
}

func (m *Monitor) publishStatus(s Status, detail string) {
	m.publish(Event{Kind: EventStatus, Status: s, Detail: detail})
}

// publish never blocks the capture goroutine.
func (m *Monitor) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case m.events <- ev:
	default:
		m.dropped.Add(1)
		m.log.Warn("monitor: event queue full, dropping event", "kind", ev.Kind)
	}
}
