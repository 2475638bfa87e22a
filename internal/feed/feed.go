// Package feed streams transcript entries to websocket clients.
//
// A [Hub] is a [capture.Mirror]: the monitor hands it every entry that
// changed the transcript, and the hub fans the entries out to all connected
// clients as JSON text messages. Clients that cannot keep up are
// disconnected instead of slowing down capture.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/observe"
)

const (
	// DefaultBuffer is the number of messages queued per subscriber.
	DefaultBuffer = 64

	writeTimeout = 5 * time.Second
)

// Message is the JSON document sent for each entry.
type Message struct {
	Session   string `json:"session"`
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
}

func newMessage(session string, e capture.Entry) Message {
	return Message{Session: session, Timestamp: e.Timestamp, Speaker: e.Speaker, Content: e.Content}
}

// Snapshot returns the current session ID and transcript. A hub with a
// snapshot sends the transcript to every client right after it connects.
// An entry stored but not yet mirrored when the client connects arrives
// twice. It is called with the hub locked and must not call back into the
// hub.
type Snapshot func() (sessionID string, entries []capture.Entry)

// Option configures a [Hub].
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithMetrics sets the metric instruments. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithSnapshot sets the backlog source for new clients.
func WithSnapshot(s Snapshot) Option {
	return func(h *Hub) { h.snapshot = s }
}

type subscriber struct {
	msgs      chan []byte
	closeSlow func()
}

// Hub broadcasts entries to websocket subscribers. It is safe for concurrent
// use.
type Hub struct {
	buffer   int
	snapshot Snapshot
	metrics  *observe.Metrics
	log      *slog.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

var _ capture.Mirror = (*Hub)(nil)

// NewHub returns a hub without subscribers.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		buffer: DefaultBuffer,
		log:    slog.Default(),
		subs:   make(map[*subscriber]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Mirror implements [capture.Mirror]. It never blocks on clients and never
// fails.
func (h *Hub) Mirror(_ context.Context, sessionID string, entries []capture.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return nil
	}
	for _, e := range entries {
		msg, err := json.Marshal(newMessage(sessionID, e))
		if err != nil {
			return fmt.Errorf("feed: encode entry: %w", err)
		}
		for s := range h.subs {
			select {
			case s.msgs <- msg:
			default:
				delete(h.subs, s)
				go s.closeSlow()
			}
		}
	}
	return nil
}

// ServeHTTP upgrades the request to a websocket and streams entries until
// the client goes away or falls behind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("feed: accept websocket", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	err = h.serve(r.Context(), conn)
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		h.log.Debug("feed: subscriber left", "remote", r.RemoteAddr)
	default:
		h.log.Info("feed: subscriber dropped", "remote", r.RemoteAddr, "error", err)
	}
}

func (h *Hub) serve(ctx context.Context, conn *websocket.Conn) error {
	// Clients only listen; CloseRead handles their control frames and
	// cancels ctx once they disconnect.
	ctx = conn.CloseRead(ctx)

	s, session, backlog := h.subscribe(ctx, func() {
		conn.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
	})
	defer h.remove(s)

	for _, e := range backlog {
		msg, err := json.Marshal(newMessage(session, e))
		if err != nil {
			return fmt.Errorf("feed: encode entry: %w", err)
		}
		if err := write(ctx, conn, msg); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.msgs:
			if err := write(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

// subscribe registers a subscriber and returns the backlog to send before
// its queue. The backlog is taken under the hub lock, so every entry is
// either in the backlog or queued. The queue holds the configured buffer
// plus one message per backlog entry.
func (h *Hub) subscribe(ctx context.Context, closeSlow func()) (*subscriber, string, []capture.Entry) {
	h.mu.Lock()
	var (
		session string
		backlog []capture.Entry
	)
	if h.snapshot != nil {
		session, backlog = h.snapshot()
	}
	s := &subscriber{msgs: make(chan []byte, h.buffer+len(backlog)), closeSlow: closeSlow}
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.metrics.FeedSubscribers.Add(ctx, 1)
	return s, session, backlog
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	h.metrics.FeedSubscribers.Add(context.Background(), -1)
}

func write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
