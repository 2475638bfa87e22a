package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher reloads the config file while meetnav runs. Whenever the file's
// content changes and still validates, the callback receives the previous
// and the new config. An invalid edit is reported once and the last valid
// config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	log      *slog.Logger

	mu       sync.Mutex
	current  *Config
	modTime  time.Time
	sum      [sha256.Size]byte
	lastFail string
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often the file is checked. The default is 2s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger for reloads and rejected edits.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher loads path, which must be valid. Call [Watcher.Run] to start
// watching.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 2 * time.Second,
		onChange: onChange,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	snap, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.sum, w.modTime = snap.cfg, snap.sum, snap.modTime
	return w, nil
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run checks the file every interval until ctx is done. It always returns
// nil; problems with the file are logged.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.Check()
		}
	}
}

// Check reloads the file if it changed since the last check and reports
// whether a new config was applied.
func (w *Watcher) Check() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		// Editors that save by rename make the file vanish briefly.
		w.reject(err)
		return false
	}
	w.mu.Lock()
	same := info.ModTime().Equal(w.modTime)
	w.mu.Unlock()
	if same {
		return false
	}

	snap, err := w.load()
	if err != nil {
		w.reject(err)
		return false
	}

	w.mu.Lock()
	w.modTime = snap.modTime
	w.lastFail = ""
	if snap.sum == w.sum {
		w.mu.Unlock()
		return false
	}
	old := w.current
	w.current, w.sum = snap.cfg, snap.sum
	w.mu.Unlock()

	w.log.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, snap.cfg)
	}
	return true
}

// reject logs err unless it repeats the previous failure.
func (w *Watcher) reject(err error) {
	msg := err.Error()
	w.mu.Lock()
	repeat := msg == w.lastFail
	w.lastFail = msg
	w.mu.Unlock()
	if !repeat {
		w.log.Warn("config edit ignored, keeping the previous config", "path", w.path, "err", err)
	}
}

type snapshot struct {
	cfg     *Config
	sum     [sha256.Size]byte
	modTime time.Time
}

func (w *Watcher) load() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), modTime: info.ModTime()}, nil
}
