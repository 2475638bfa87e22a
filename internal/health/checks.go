package health

import (
	"context"
	"errors"
)

// Attached reports ready once attached returns true. It backs the "capture"
// check, which fails while the monitor is still discovering the caption list.
func Attached(name string, attached func() bool) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if !attached() {
				return errors.New("caption list not attached")
			}
			return nil
		},
	}
}

// Configured fails with reason when ok is false. Used for static settings
// such as the LLM provider.
func Configured(name string, ok bool, reason string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if !ok {
				return errors.New(reason)
			}
			return nil
		},
	}
}

// Ping wraps a dependency probe such as a database ping.
func Ping(name string, ping func(ctx context.Context) error) Checker {
	return Checker{Name: name, Check: ping}
}
