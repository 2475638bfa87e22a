package assist

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/internal/transcript/phonetic"
)

// LiveActions are the actions re-run by [Live] on every cycle.
var LiveActions = []config.Action{config.ActionSummarize, config.ActionViewpoints, config.ActionNavigate}

// Input is a snapshot of what the live loop sends to the model.
type Input struct {
	Transcript string
	Context    Context
}

// Live periodically refreshes the in-meeting guidance while enabled.
type Live struct {
	assistant *Assistant
	source    func() Input
	deliver   func(Result)
	log       *slog.Logger

	enabled  atomic.Bool
	interval atomic.Int64
	kick     chan struct{}

	last string
}

// LiveOption configures a [Live].
type LiveOption func(*Live)

// WithLiveLogger sets the logger.
func WithLiveLogger(l *slog.Logger) LiveOption {
	return func(lv *Live) { lv.log = l }
}

// NewLive returns a disabled live loop. source is called once per cycle;
// deliver receives every result, including failures.
func NewLive(a *Assistant, interval time.Duration, source func() Input, deliver func(Result), opts ...LiveOption) *Live {
	l := &Live{
		assistant: a,
		source:    source,
		deliver:   deliver,
		log:       slog.Default(),
		kick:      make(chan struct{}, 1),
	}
	l.interval.Store(int64(interval))
	for _, o := range opts {
		o(l)
	}
	return l
}

// SetEnabled switches live mode on or off. Turning it on starts a cycle
// right away.
func (l *Live) SetEnabled(on bool) {
	if l.enabled.Swap(on) == on || !on {
		return
	}
	select {
	case l.kick <- struct{}{}:
	default:
	}
}

// Enabled reports whether live mode is on.
func (l *Live) Enabled() bool {
	return l.enabled.Load()
}

// SetInterval changes the cadence from the next cycle on.
func (l *Live) SetInterval(d time.Duration) {
	if d > 0 {
		l.interval.Store(int64(d))
	}
}

// Interval returns the current cadence.
func (l *Live) Interval() time.Duration {
	return time.Duration(l.interval.Load())
}

// Run drives the loop until ctx is cancelled. It always returns nil.
func (l *Live) Run(ctx context.Context) error {
	timer := time.NewTimer(l.Interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-l.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		if l.Enabled() {
			l.cycle(ctx)
		}
		timer.Reset(l.Interval())
	}
}

// cycle runs every live action once. It does nothing if the transcript did
// not change since the previous cycle.
func (l *Live) cycle(ctx context.Context) {
	in := l.source()
	if in.Transcript == l.last {
		return
	}
	for _, action := range LiveActions {
		res := l.assistant.Run(ctx, action, in.Transcript, in.Context)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(res.Err, ErrEmptyTranscript) {
			return
		}
		if res.Err != nil {
			l.log.Warn("assist: live action failed", "action", action, "error", res.Err)
		}
		l.deliver(res)
	}
	l.last = in.Transcript
}

// NewInput formats entries into a transcript and fills mc's speaker
// statistics, resolving speakers through roster (which may be nil).
func NewInput(entries []capture.Entry, mc Context, roster *phonetic.Roster) Input {
	if len(entries) > 0 {
		mc.SpeakerStats = FormatSpeakerStats(SpeakerStats(entries, roster))
	}
	return Input{Transcript: capture.FormatTranscript(entries), Context: mc}
}
