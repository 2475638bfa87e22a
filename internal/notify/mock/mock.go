// Package mock provides a recording [notify.Notifier] for tests.
package mock

import (
	"sync"

	"github.com/MrWong99/meetnav/internal/notify"
)

var _ notify.Notifier = (*Notifier)(nil)

// Message is one recorded notification.
type Message struct {
	Title   string
	Message string
}

// Notifier records every notification.
type Notifier struct {
	mu       sync.Mutex
	messages []Message

	// Err is returned by Notify when non-nil.
	Err error
}

// Notify implements [notify.Notifier].
func (n *Notifier) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{Title: title, Message: message})
	return n.Err
}

// Messages returns a copy of the recorded notifications.
func (n *Notifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}
