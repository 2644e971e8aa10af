package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [FallbackGroup] could serve
// a call. The per-member errors are joined into the returned error.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig holds the breaker settings every member of a
// [FallbackGroup] gets. Each breaker is named after its member.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// attemptError is one member's failure within a fallback call.
type attemptError struct {
	member string
	err    error
}

func (e *attemptError) Error() string { return e.member + ": " + e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered list of interchangeable providers, each behind
// its own circuit breaker. A call goes to the first member whose breaker
// lets it through and moves down the list on failure.
//
// Members are added during setup; the group is read-only once calls start.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup returns a group whose first member is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.AddFallback(primaryName, primary)
	return g
}

// AddFallback appends a member that is tried after all existing ones.
func (g *FallbackGroup[T]) AddFallback(name string, v T) {
	bc := g.cfg.CircuitBreaker
	bc.Name = name
	g.members = append(g.members, member[T]{name: name, value: v, breaker: NewCircuitBreaker(bc)})
}

// Primary returns the first member.
func (g *FallbackGroup[T]) Primary() T { return g.members[0].value }

// BreakerStates reports each member's breaker state by member name.
func (g *FallbackGroup[T]) BreakerStates() map[string]State {
	states := make(map[string]State, len(g.members))
	for _, m := range g.members {
		states[m.name] = m.breaker.State()
	}
	return states
}

// Execute calls fn with each member in turn until one returns nil.
func (g *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	_, err := tryEach(ctx, g, func(_ string, v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that return a
// value.
func ExecuteWithResult[T, R any](ctx context.Context, g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	return tryEach(ctx, g, func(_ string, v T) (R, error) { return fn(v) })
}

// tryEach walks the members in order. Cancellation ends the walk at once and
// is returned unwrapped: the caller gave up, no provider failed.
func tryEach[T, R any](ctx context.Context, g *FallbackGroup[T], fn func(name string, v T) (R, error)) (R, error) {
	var (
		zero     R
		attempts []error
	)
	for i := range g.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		m := &g.members[i]

		var res R
		err := m.breaker.Execute(func() error {
			var callErr error
			res, callErr = fn(m.name, m.value)
			return callErr
		})
		switch {
		case err == nil:
			return res, nil
		case errors.Is(err, context.Canceled):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("fallback: circuit open, skipping", "provider", m.name)
		case i < len(g.members)-1:
			slog.Warn("fallback: provider failed, trying next", "provider", m.name, "err", err)
		}
		attempts = append(attempts, &attemptError{member: m.name, err: err})
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(attempts...))
}
