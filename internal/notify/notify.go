// Package notify raises desktop notifications for errors the user should see
// even while the dashboard is hidden.
package notify

import (
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(title, message string) error
}

// DefaultQuiet is how long an identical notification is suppressed.
const DefaultQuiet = 30 * time.Second

// Desktop sends notifications through the OS notification centre. Repeats of
// the same title and message within the quiet period are dropped, so a
// failing LLM or a lost caption window does not flood the user.
type Desktop struct {
	quiet time.Duration
	now   func() time.Time
	send  func(title, message, icon string) error

	mu   sync.Mutex
	last map[string]time.Time
}

// Option configures a [Desktop].
type Option func(*Desktop)

// WithQuiet sets the suppression window. Zero disables suppression.
func WithQuiet(d time.Duration) Option {
	return func(n *Desktop) { n.quiet = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Desktop) { n.now = now }
}

// withSender replaces beeep.Notify in tests.
func withSender(send func(title, message, icon string) error) Option {
	return func(n *Desktop) { n.send = send }
}

// NewDesktop returns a Desktop notifier.
func NewDesktop(opts ...Option) *Desktop {
	n := &Desktop{
		quiet: DefaultQuiet,
		now:   time.Now,
		send:  desktopSend,
		last:  make(map[string]time.Time),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Notify implements [Notifier].
func (n *Desktop) Notify(title, message string) error {
	key := title + "\x00" + message
	now := n.now()

	n.mu.Lock()
	if at, ok := n.last[key]; ok && n.quiet > 0 && now.Sub(at) < n.quiet {
		n.mu.Unlock()
		return nil
	}
	n.last[key] = now
	n.mu.Unlock()

	return n.send(title, message, "")
}

func desktopSend(title, message, icon string) error {
	return beeep.Notify(title, message, icon)
}

// Discard drops every notification. Used in headless mode.
type Discard struct{}

// Notify implements [Notifier].
func (Discard) Notify(string, string) error { return nil }
