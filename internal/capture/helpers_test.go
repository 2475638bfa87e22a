package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/meetnav/internal/uia"
)

// fakeSleeper records requested pauses without sleeping.
type fakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, d)
	return nil
}

func (f *fakeSleeper) count(d time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == d {
			n++
		}
	}
	return n
}

var fixedNow = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestReconciler returns a reconciler writing into a temp dir with a fake
// sleeper and fixed clock.
func newTestReconciler(t *testing.T, cfg Config, kb uia.Keyboard) (*Reconciler, *fakeSleeper) {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	sl := &fakeSleeper{}
	r, err := NewReconciler(cfg, kb,
		WithSleeper(sl),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return r, sl
}

// row renders the accessible name of the i-th caption with a unique
// timestamp counted from 10:00:00.
func row(i int) string {
	return fmt.Sprintf("Speaker%d 10:%02d:%02d\nline %d", i%3, i/60, i%60, i)
}

func rows(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = row(i)
	}
	return out
}
