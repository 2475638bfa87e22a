package uia

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// Key is a navigation key that can be injected into the focused window.
type Key int

// Navigation keys used to scroll the caption list.
const (
	KeyHome Key = iota + 1
	KeyEnd
	KeyPageDown
)

// String returns the key's name.
func (k Key) String() string {
	switch k {
	case KeyHome:
		return "Home"
	case KeyEnd:
		return "End"
	case KeyPageDown:
		return "PageDown"
	default:
		return fmt.Sprintf("Key(%d)", int(k))
	}
}

// Keyboard injects key presses into whatever window currently has focus.
type Keyboard interface {
	// Press sends a full press and release of key. It returns early with
	// ctx.Err() if ctx is cancelled between the two events.
	Press(ctx context.Context, key Key) error
}

// KeyEventGap is the pause between the press and release events of a key.
const KeyEventGap = 50 * time.Millisecond

// SystemKeyboard is a [Keyboard] that synthesises OS-level key events.
type SystemKeyboard struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

var _ Keyboard = (*SystemKeyboard)(nil)

// NewSystemKeyboard creates a keyboard backed by the OS input subsystem. On
// Linux this requires write access to /dev/uinput.
func NewSystemKeyboard() (*SystemKeyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("uia: create keyboard: %w", err)
	}
	return &SystemKeyboard{kb: kb}, nil
}

// Press implements [Keyboard].
func (s *SystemKeyboard) Press(ctx context.Context, key Key) error {
	vk, err := virtualKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.kb.Clear()
	s.kb.SetKeys(vk)
	if err := s.kb.Press(); err != nil {
		return fmt.Errorf("uia: press %s: %w", key, err)
	}

	t := time.NewTimer(KeyEventGap)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}

	// Release even on cancellation so the key is never left held down.
	if err := s.kb.Release(); err != nil {
		return fmt.Errorf("uia: release %s: %w", key, err)
	}
	return ctx.Err()
}

func virtualKey(k Key) (int, error) {
	switch k {
	case KeyHome:
		return keybd_event.VK_HOME, nil
	case KeyEnd:
		return keybd_event.VK_END, nil
	case KeyPageDown:
		return keybd_event.VK_PAGEDOWN, nil
	default:
		return 0, fmt.Errorf("uia: unsupported key %s", k)
	}
}
