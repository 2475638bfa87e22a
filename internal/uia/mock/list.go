package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/meetnav/internal/uia"
)

// List simulates a virtualized caption list. Only Window rows starting at the
// scroll offset are exposed as children, preceded by a non-item header
// element. It also implements [uia.Keyboard] so key presses scroll it.
type List struct {
	mu sync.Mutex

	// Rows holds the accessible names of every row, oldest first.
	Rows []string

	// Window is the number of rows materialised at once. Zero means 5.
	Window int

	// HomeStep, if positive, limits how many rows a single Home press scrolls
	// up, mimicking lazy loading of history. Zero jumps straight to the top.
	HomeStep int

	// OnPageDown, if set, is called on every PageDown before scrolling and
	// its rows are appended to Rows.
	OnPageDown func() []string

	// ChildrenErr, if non-nil, is returned from Children.
	ChildrenErr error

	top        int
	focusCalls int
	presses    []uia.Key
}

var (
	_ uia.Element  = (*List)(nil)
	_ uia.Keyboard = (*List)(nil)
)

// Name implements uia.Element.
func (l *List) Name() (string, error) { return "Transcript", nil }

// ControlType implements uia.Element.
func (l *List) ControlType() (uia.ControlType, error) { return uia.List, nil }

// ClassName implements uia.Element.
func (l *List) ClassName() (string, error) { return "", nil }

// SetFocus implements uia.Element.
func (l *List) SetFocus() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.focusCalls++
	return nil
}

// Release implements uia.Element.
func (l *List) Release() {}

// Children implements uia.Element.
func (l *List) Children() ([]uia.Element, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ChildrenErr != nil {
		return nil, l.ChildrenErr
	}
	out := []uia.Element{&Element{NameValue: "Live Transcript", Type: uia.Text}}
	start := min(l.top, len(l.Rows))
	end := min(start+l.window(), len(l.Rows))
	for _, r := range l.Rows[start:end] {
		out = append(out, Item(r))
	}
	return out, nil
}

// Press implements uia.Keyboard by scrolling the list.
func (l *List) Press(_ context.Context, key uia.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.presses = append(l.presses, key)

	switch key {
	case uia.KeyHome:
		if l.HomeStep > 0 {
			l.top = max(0, l.top-l.HomeStep)
		} else {
			l.top = 0
		}
	case uia.KeyEnd:
		l.top = l.lastTop()
	case uia.KeyPageDown:
		if l.OnPageDown != nil {
			l.Rows = append(l.Rows, l.OnPageDown()...)
		}
		l.top = min(l.top+l.window(), l.lastTop())
	}
	return nil
}

// Append adds rows to the end of the list. Thread-safe.
func (l *List) Append(rows ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Rows = append(l.Rows, rows...)
}

// Top returns the current scroll offset. Thread-safe.
func (l *List) Top() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.top
}

// FocusCalls returns how many times SetFocus was called. Thread-safe.
func (l *List) FocusCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.focusCalls
}

// Presses returns a copy of the keys pressed so far. Thread-safe.
func (l *List) Presses() []uia.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uia.Key, len(l.presses))
	copy(out, l.presses)
	return out
}

func (l *List) window() int {
	if l.Window <= 0 {
		return 5
	}
	return l.Window
}

func (l *List) lastTop() int {
	return max(0, len(l.Rows)-l.window())
}
