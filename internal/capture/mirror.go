package capture

import "context"

// Mirror receives entries after they changed the store, e.g. to replicate the
// transcript to a database or stream it to clients. sessionID is stable for
// the lifetime of a [Reconciler].
type Mirror interface {
	Mirror(ctx context.Context, sessionID string, entries []Entry) error
}

// MirrorFunc adapts a function to [Mirror].
type MirrorFunc func(ctx context.Context, sessionID string, entries []Entry) error

// Mirror implements [Mirror].
func (f MirrorFunc) Mirror(ctx context.Context, sessionID string, entries []Entry) error {
	return f(ctx, sessionID, entries)
}
