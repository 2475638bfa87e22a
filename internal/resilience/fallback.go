package resilience

import (
	"errors"
	"fmt"
)

// ErrAllFailed is returned when every member of a [FallbackGroup] failed or
// was skipped because its breaker is open.
var ErrAllFailed = errors.New("resilience: all providers failed")

// member pairs a provider value with its dedicated circuit breaker.
type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallbacks of the same type,
// each behind its own [CircuitBreaker]. Members are tried in insertion order.
// Members must be added before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	cb      CircuitBreakerConfig
	members []member[T]
}

// NewFallbackGroup creates a group with primary as its first member. cb is
// the template for every member's breaker; its Name is replaced by the
// member name.
func NewFallbackGroup[T any](primaryName string, primary T, cb CircuitBreakerConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cb: cb}
	g.Add(primaryName, primary)
	return g
}

// Add appends a fallback member.
func (g *FallbackGroup[T]) Add(name string, value T) {
	cfg := g.cb
	cfg.Name = name
	g.members = append(g.members, member[T]{name: name, value: value, breaker: NewCircuitBreaker(cfg)})
}

// Primary returns the first member's value.
func (g *FallbackGroup[T]) Primary() T { return g.members[0].value }

// Status reports each member's name and breaker state in order.
func (g *FallbackGroup[T]) Status() []MemberStatus {
	out := make([]MemberStatus, len(g.members))
	for i, m := range g.members {
		out[i] = MemberStatus{Name: m.name, State: m.breaker.State()}
	}
	return out
}

// MemberStatus is one entry of [FallbackGroup.Status].
type MemberStatus struct {
	Name  string
	State State
}

// Call runs fn against each member until one succeeds and returns its result
// together with the name of the member that served it. With a single member
// the member's own error is returned unchanged; otherwise the final error
// wraps [ErrAllFailed] and every member's error.
func Call[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, string, error) {
	var (
		zero R
		errs []error
	)
	for i := range g.members {
		m := &g.members[i]
		var res R
		err := m.breaker.Execute(func() error {
			var err error
			res, err = fn(m.value)
			return err
		})
		if err == nil {
			return res, m.name, nil
		}
		if !m.breaker.cfg.IsFailure(err) {
			// Cancellation is not a provider fault; stop here.
			return zero, m.name, err
		}
		if len(g.members) == 1 {
			return zero, m.name, err
		}
		if !errors.Is(err, ErrCircuitOpen) {
			m.breaker.cfg.Logger.Warn("provider failed, trying next", "provider", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
