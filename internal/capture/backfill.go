package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/meetnav/internal/uia"
)

// Phase is the progress of a [Backfill] pass.
type Phase int

// Backfill phases, in order.
const (
	PhaseNotStarted Phase = iota
	PhaseScrollingToTop
	PhaseCollectingForward
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseScrollingToTop:
		return "scrolling_to_top"
	case PhaseCollectingForward:
		return "collecting_forward"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Default backfill parameters.
const (
	DefaultTopRounds  = 3
	DefaultTopPresses = 10
	DefaultStaleLimit = 3
	DefaultMaxPages   = 500
)

// Pauses between backfill steps. The list needs time to re-render after
// every key press.
const (
	focusSettle    = 500 * time.Millisecond
	endSettle      = 200 * time.Millisecond
	homeSettle     = 100 * time.Millisecond
	topRetryPause  = 500 * time.Millisecond
	pageDownSettle = 300 * time.Millisecond
)

// Sleeper pauses for a duration. Implementations return ctx.Err() early if
// ctx is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to [Sleeper].
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements [Sleeper].
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper is the wall-clock [Sleeper].
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// sampleFunc returns the parsed, not yet stored entries currently visible in
// list.
type sampleFunc func(list uia.Element) ([]Entry, error)

// Backfill recovers the caption history that scrolled out of view before
// capture started. It focuses the list, scrolls to the top and pages forward
// until several consecutive pages bring no new timestamps.
type Backfill struct {
	// TopRounds is the number of attempts at reaching the top of the list.
	TopRounds int
	// TopPresses is the number of Home presses per attempt.
	TopPresses int
	// StaleLimit is the number of consecutive pages without new timestamps
	// that ends the pass.
	StaleLimit int
	// MaxPages caps the PageDown presses of one pass so that a list that
	// never stops growing cannot stall capture.
	MaxPages int

	keyboard uia.Keyboard
	sleeper  Sleeper
	sample   sampleFunc
	log      *slog.Logger

	phase Phase
	pages int
}

// Phase returns the current phase.
func (b *Backfill) Phase() Phase {
	return b.phase
}

// Pages returns the number of PageDown presses of the last pass.
func (b *Backfill) Pages() int {
	return b.pages
}

// Run executes one backfill pass over list and returns the collected entries
// in the order they were seen. On error the entries collected so far are
// returned alongside it and the phase is reset so a later call starts over.
func (b *Backfill) Run(ctx context.Context, list uia.Element) (collected []Entry, err error) {
	b.pages = 0
	defer func() {
		if err != nil {
			b.phase = PhaseNotStarted
		}
	}()

	b.phase = PhaseScrollingToTop
	b.log.Info("backfill: scrolling to top")

	if err := list.SetFocus(); err != nil {
		return nil, fmt.Errorf("capture: backfill: focus list: %w", err)
	}
	if err := b.sleeper.Sleep(ctx, focusSettle); err != nil {
		return nil, err
	}
	if err := b.press(ctx, uia.KeyEnd, endSettle); err != nil {
		return nil, err
	}

	reached := false
	for round := 0; round < b.TopRounds && !reached; round++ {
		for range b.TopPresses {
			if err := b.press(ctx, uia.KeyHome, homeSettle); err != nil {
				return nil, err
			}
		}
		entries, err := b.sampleSafe(list)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 && entries[0].Timestamp != "" {
			b.log.Info("backfill: reached top", "earliest", entries[0].Timestamp, "round", round+1)
			reached = true
			break
		}
		if err := b.sleeper.Sleep(ctx, topRetryPause); err != nil {
			return nil, err
		}
	}
	if !reached {
		b.log.Warn("backfill: top of list not confirmed, collecting from current position",
			"rounds", b.TopRounds)
	}

	b.phase = PhaseCollectingForward
	seen := make(map[string]struct{})
	stale := 0
	for stale < b.StaleLimit {
		if b.pages >= b.MaxPages {
			b.log.Warn("backfill: page limit reached", "max_pages", b.MaxPages, "collected", len(collected))
			break
		}

		entries, err := b.sampleSafe(list)
		if err != nil {
			return collected, err
		}

		fresh := make(map[string]struct{})
		for _, e := range entries {
			if _, ok := seen[e.Timestamp]; !ok {
				fresh[e.Timestamp] = struct{}{}
			}
		}
		if len(fresh) > 0 {
			n := 0
			for _, e := range entries {
				if _, ok := fresh[e.Timestamp]; ok {
					collected = append(collected, e)
					n++
				}
			}
			for ts := range fresh {
				seen[ts] = struct{}{}
			}
			b.log.Debug("backfill: page collected", "new_entries", n)
			stale = 0
		} else {
			stale++
		}

		if err := b.press(ctx, uia.KeyPageDown, pageDownSettle); err != nil {
			return collected, err
		}
		b.pages++
	}

	b.phase = PhaseDone
	b.log.Info("backfill: done", "collected", len(collected), "pages", b.pages)
	return collected, nil
}

// press sends key and waits settle.
func (b *Backfill) press(ctx context.Context, key uia.Key, settle time.Duration) error {
	if err := b.keyboard.Press(ctx, key); err != nil {
		return fmt.Errorf("capture: backfill: press %s: %w", key, err)
	}
	return b.sleeper.Sleep(ctx, settle)
}

// sampleSafe samples the list. Only a vanished list is an error; other
// failures count as an empty sample.
func (b *Backfill) sampleSafe(list uia.Element) ([]Entry, error) {
	entries, err := b.sample(list)
	if err != nil {
		if errors.Is(err, uia.ErrElementGone) {
			return nil, err
		}
		b.log.Warn("backfill: sample failed", "error", err)
		return nil, nil
	}
	return entries, nil
}
