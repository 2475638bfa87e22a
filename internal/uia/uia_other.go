//go:build !windows

package uia

import "context"

// SystemFinder is a placeholder [Finder] for platforms without UI Automation.
type SystemFinder struct{}

// NewFinder returns the platform's window finder.
func NewFinder() *SystemFinder {
	return &SystemFinder{}
}

// FindWindow always returns [ErrUnsupported].
func (f *SystemFinder) FindWindow(context.Context, string) (Element, error) {
	return nil, ErrUnsupported
}

var _ Finder = (*SystemFinder)(nil)

// Close is a no-op.
func (f *SystemFinder) Close() error {
	return nil
}
