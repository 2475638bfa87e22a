// Package mock provides test doubles for the uia package: a static element
// tree, a window finder, a recording keyboard and a scrollable caption list
// that mimics a virtualized accessibility list.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/meetnav/internal/uia"
)

// Element is a static [uia.Element]. Zero values yield empty strings, control
// type 0 and no children.
type Element struct {
	mu sync.Mutex

	NameValue   string
	NameErr     error
	Type        uia.ControlType
	TypeErr     error
	Class       string
	Kids        []uia.Element
	ChildrenErr error
	FocusErr    error

	// NameFunc, if set, overrides NameValue and NameErr.
	NameFunc func() (string, error)

	FocusCalls   int
	ReleaseCalls int
}

var _ uia.Element = (*Element)(nil)

// Name implements uia.Element.
func (e *Element) Name() (string, error) {
	if e.NameFunc != nil {
		return e.NameFunc()
	}
	return e.NameValue, e.NameErr
}

// ControlType implements uia.Element.
func (e *Element) ControlType() (uia.ControlType, error) {
	return e.Type, e.TypeErr
}

// ClassName implements uia.Element.
func (e *Element) ClassName() (string, error) {
	return e.Class, nil
}

// Children implements uia.Element.
func (e *Element) Children() ([]uia.Element, error) {
	if e.ChildrenErr != nil {
		return nil, e.ChildrenErr
	}
	out := make([]uia.Element, len(e.Kids))
	copy(out, e.Kids)
	return out, nil
}

// SetFocus implements uia.Element.
func (e *Element) SetFocus() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FocusCalls++
	return e.FocusErr
}

// Release implements uia.Element.
func (e *Element) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ReleaseCalls++
}

// Item returns a list item element with the given accessible name.
func Item(name string) *Element {
	return &Element{NameValue: name, Type: uia.ListItem}
}

// Finder is a [uia.Finder] that returns Window or Err.
type Finder struct {
	mu sync.Mutex

	Window uia.Element
	Err    error

	// FindFunc, if set, overrides Window and Err.
	FindFunc func(ctx context.Context, className string) (uia.Element, error)

	// Classes records the class name passed to every FindWindow call.
	Classes []string
}

var _ uia.Finder = (*Finder)(nil)

// FindWindow implements uia.Finder.
func (f *Finder) FindWindow(ctx context.Context, className string) (uia.Element, error) {
	f.mu.Lock()
	f.Classes = append(f.Classes, className)
	fn, win, err := f.FindFunc, f.Window, f.Err
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, className)
	}
	return win, err
}

// Calls returns the number of FindWindow invocations. Thread-safe.
func (f *Finder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Classes)
}

// Keyboard records key presses and optionally forwards them to Target.
type Keyboard struct {
	mu sync.Mutex

	// Target receives every press after it is recorded. May be nil.
	Target uia.Keyboard

	// Err, if non-nil, is returned from every Press.
	Err error

	Presses []uia.Key
}

var _ uia.Keyboard = (*Keyboard)(nil)

// Press implements uia.Keyboard.
func (k *Keyboard) Press(ctx context.Context, key uia.Key) error {
	k.mu.Lock()
	k.Presses = append(k.Presses, key)
	target, err := k.Target, k.Err
	k.mu.Unlock()

	if err != nil {
		return err
	}
	if target != nil {
		return target.Press(ctx, key)
	}
	return nil
}

// Count returns how many times key was pressed. Thread-safe.
func (k *Keyboard) Count(key uia.Key) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, p := range k.Presses {
		if p == key {
			n++
		}
	}
	return n
}
