package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/meetnav/internal/uia"
)

// Config configures a [Reconciler].
type Config struct {
	// OutputDir is the directory of the transcript file. Defaults to
	// <user home>/ZoomTranscript.
	OutputDir string

	// FilePrefix is the transcript file name prefix. Defaults to "zoom".
	FilePrefix string

	// Identity selects deduplication. Defaults to [IdentityDraft].
	Identity Identity

	// MaxBackfillPages caps the PageDown presses of the backfill pass.
	// Defaults to [DefaultMaxPages].
	MaxBackfillPages int
}

// Option is a functional option for [NewReconciler].
type Option func(*Reconciler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.log = l
	}
}

// WithSleeper replaces the wall-clock sleeper used between backfill steps.
func WithSleeper(s Sleeper) Option {
	return func(r *Reconciler) {
		r.sleeper = s
	}
}

// WithClock replaces time.Now, which dates the transcript file name.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// Reconciler turns successive samples of a caption list into a growing
// transcript. It must be used from a single goroutine; [Reconciler.Store]
// may be read concurrently.
type Reconciler struct {
	store    *Store
	state    State
	file     fileWriter
	backfill *Backfill

	keyboard uia.Keyboard
	sleeper  Sleeper
	now      func() time.Time
	log      *slog.Logger
}

// NewReconciler creates a reconciler that scrolls list elements with kb.
func NewReconciler(cfg Config, kb uia.Keyboard, opts ...Option) (*Reconciler, error) {
	if !cfg.Identity.Valid() {
		return nil, fmt.Errorf("capture: unknown identity mode %q", cfg.Identity)
	}
	dir := cfg.OutputDir
	if dir == "" {
		d, err := DefaultOutputDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	prefix := cfg.FilePrefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	maxPages := cfg.MaxBackfillPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	r := &Reconciler{
		store:    NewStore(cfg.Identity),
		keyboard: kb,
		sleeper:  TimerSleeper,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.file = fileWriter{dir: dir, prefix: prefix, now: r.now}
	r.backfill = &Backfill{
		TopRounds:  DefaultTopRounds,
		TopPresses: DefaultTopPresses,
		StaleLimit: DefaultStaleLimit,
		MaxPages:   maxPages,
		keyboard:   kb,
		sleeper:    r.sleeper,
		sample:     r.Visible,
		log:        r.log,
	}
	return r, nil
}

// Store returns the reconciler's entry store.
func (r *Reconciler) Store() *Store {
	return r.store
}

// State returns a copy of the session state.
func (r *Reconciler) State() State {
	return r.state
}

// Backfill returns the backfill state machine, mainly for inspection.
func (r *Reconciler) Backfill() *Backfill {
	return r.backfill
}

// Dir returns the directory transcripts are written to. Unlike
// [Reconciler.Path] it is safe to call from any goroutine.
func (r *Reconciler) Dir() string {
	return r.file.dir
}

// Path returns the transcript file path. The name is fixed on first call.
func (r *Reconciler) Path() string {
	return r.file.pathFor(&r.state)
}

// SessionID returns the transcript file's base name without extension. It
// identifies the session in mirrors.
func (r *Reconciler) SessionID() string {
	return strings.TrimSuffix(filepath.Base(r.Path()), ".txt")
}

// Visible parses the list's current list-item children and returns those not
// yet in the store, in list order. Rows sharing an identity key are
// collapsed to the last one. A child whose name cannot be read is skipped;
// failing to enumerate the children is an error.
func (r *Reconciler) Visible(list uia.Element) ([]Entry, error) {
	children, err := list.Children()
	if err != nil {
		return nil, fmt.Errorf("capture: list children: %w", err)
	}
	defer func() {
		for _, c := range children {
			c.Release()
		}
	}()

	var rows []Entry
	for i, child := range children {
		ct, err := child.ControlType()
		if err != nil {
			if errors.Is(err, uia.ErrElementGone) {
				return nil, err
			}
			r.log.Debug("capture: skip child: control type", "index", i, "error", err)
			continue
		}
		if ct != uia.ListItem {
			continue
		}
		name, err := child.Name()
		if err != nil {
			r.log.Debug("capture: skip child: name", "index", i, "error", err)
			continue
		}
		e, err := ParseRow(&r.state, name)
		if err != nil {
			r.log.Debug("capture: skip row", "index", i, "error", err)
			continue
		}
		rows = append(rows, e)
	}

	var out []Entry
	for _, e := range latest(r.store.identity, rows) {
		if !r.store.Has(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// latest drops every entry that a later entry in the batch supersedes under
// identity. Under [IdentityFinal] continuation rows share a key with the row
// they revise, and only the newest revision may reach the store.
func latest(identity Identity, entries []Entry) []Entry {
	if len(entries) < 2 {
		return entries
	}
	last := make(map[Key]int, len(entries))
	for i, e := range entries {
		last[identity.key(e)] = i
	}
	if len(last) == len(entries) {
		return entries
	}
	out := make([]Entry, 0, len(last))
	for i, e := range entries {
		if last[identity.key(e)] == i {
			out = append(out, e)
		}
	}
	return out
}

// Poll runs the backfill pass if it has not completed yet, otherwise samples
// the visible rows, and merges the result. It returns the entries that
// changed the store, in transcript order. Entries collected before an error
// are still merged.
func (r *Reconciler) Poll(ctx context.Context, list uia.Element) ([]Entry, error) {
	var (
		entries []Entry
		err     error
	)
	if !r.state.InitialScanDone {
		entries, err = r.backfill.Run(ctx, list)
		if err == nil {
			r.state.InitialScanDone = true
		}
	} else {
		entries, err = r.Visible(list)
	}

	added, mergeErr := r.Merge(ctx, entries)
	return added, errors.Join(err, mergeErr)
}

// Merge inserts entries into the store and, if anything changed, rewrites the
// transcript file. It returns the entries that changed the store in
// transcript order. A write failure is returned wrapped in [ErrPersist]; the
// store keeps the entries and the next change retries the write.
func (r *Reconciler) Merge(_ context.Context, entries []Entry) ([]Entry, error) {
	changed := make(map[Key]struct{})
	for _, e := range latest(r.store.identity, entries) {
		if !r.store.Put(e) {
			continue
		}
		r.state.observe(e, r.now())
		changed[r.store.identity.key(e)] = struct{}{}
		r.log.Debug("capture: entry added", "timestamp", e.Timestamp, "speaker", e.Speaker)
	}
	if len(changed) == 0 {
		return nil, nil
	}

	sorted := r.store.Sorted()
	added := make([]Entry, 0, len(changed))
	for _, e := range sorted {
		if _, ok := changed[r.store.identity.key(e)]; ok {
			added = append(added, e)
		}
	}

	if err := r.file.write(&r.state, sorted); err != nil {
		return added, err
	}
	r.log.Debug("capture: transcript saved", "path", r.file.path, "entries", len(sorted))
	return added, nil
}

// Flush rewrites the transcript file from the store.
func (r *Reconciler) Flush() error {
	return r.file.write(&r.state, r.store.Sorted())
}
