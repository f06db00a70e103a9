// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package breaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/recommendcore/internal/metrics"
)

// ErrOpen is returned, wrapped with the breaker name, when a call is rejected
// without reaching the dependency.
var ErrOpen = errors.New("circuit open")

// State is the externally visible breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

// Settings tunes one breaker.
type Settings struct {
	// MinRequests is the minimum call volume in the window before the breaker may trip.
	MinRequests uint32
	// FailureRatio trips the breaker when failures/requests reaches it.
	FailureRatio float64
	// Window is the rolling window length for closed-state counts.
	Window time.Duration
	// BucketPeriod is the granularity of the rolling window.
	BucketPeriod time.Duration
	// CoolDown is how long the breaker stays open before admitting a trial.
	CoolDown time.Duration
	// HalfOpenMaxCalls is the number of trial calls admitted while half-open.
	HalfOpenMaxCalls uint32
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		MinRequests:      10,
		FailureRatio:     0.5,
		Window:           10 * time.Second,
		BucketPeriod:     time.Second,
		CoolDown:         10 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Validate checks that the settings describe a usable breaker.
func (s Settings) Validate() error {
	if s.MinRequests == 0 {
		return fmt.Errorf("min_requests must be positive")
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		return fmt.Errorf("failure_ratio must be in (0, 1], got %v", s.FailureRatio)
	}
	if s.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if s.BucketPeriod < 0 || s.BucketPeriod > s.Window {
		return fmt.Errorf("bucket_period must be between 0 and window")
	}
	if s.CoolDown <= 0 {
		return fmt.Errorf("cool_down must be positive")
	}
	if s.HalfOpenMaxCalls == 0 {
		return fmt.Errorf("half_open_max_calls must be positive")
	}
	return nil
}

// Snapshot is a point-in-time view of one breaker, for inspection endpoints.
type Snapshot struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	Requests            uint32    `json:"requests"`
	Failures            uint32    `json:"failures"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	FailureRate         float64   `json:"failure_rate"`
	LastTransition      time.Time `json:"last_transition"`
	OpenUntil           time.Time `json:"open_until,omitempty"`
}

// Breaker guards calls to one named dependency.
type Breaker struct {
	name     string
	settings Settings
	cb       *gobreaker.CircuitBreaker[any]
	logger   zerolog.Logger

	// unix nanoseconds, written from the state-change callback
	lastTransition atomic.Int64
	openUntil      atomic.Int64
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newBreaker(name string, s Settings, logger zerolog.Logger) *Breaker {
	b := &Breaker{
		name:     name,
		settings: s,
		logger:   logger.With().Str("breaker", name).Logger(),
	}
	b.lastTransition.Store(time.Now().UnixNano())

	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(gobreaker.StateClosed))

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:         name,
		MaxRequests:  s.HalfOpenMaxCalls,
		Interval:     s.Window,
		BucketPeriod: s.BucketPeriod,
		Timeout:      s.CoolDown,
		ReadyToTrip:  b.readyToTrip,
		// Runs under gobreaker's lock: must not call back into b.cb.
		OnStateChange: b.onStateChange,
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})
	return b
}

func (b *Breaker) readyToTrip(counts gobreaker.Counts) bool {
	volume := counts.Requests - counts.TotalExclusions
	if volume < b.settings.MinRequests {
		return false
	}

	ratio := float64(counts.TotalFailures) / float64(volume)
	if ratio < b.settings.FailureRatio {
		return false
	}

	b.logger.Warn().
		Uint32("requests", volume).
		Uint32("failures", counts.TotalFailures).
		Float64("failure_rate", ratio).
		Msg("Opening circuit")
	return true
}

func (b *Breaker) onStateChange(name string, from, to gobreaker.State) {
	now := time.Now()
	b.lastTransition.Store(now.UnixNano())
	if to == gobreaker.StateOpen {
		b.openUntil.Store(now.Add(b.settings.CoolDown).UnixNano())
	} else {
		b.openUntil.Store(0)
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
	metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()

	b.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Circuit state transition")
}

// Name returns the dependency name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, applying any due Open→HalfOpen transition.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Snapshot returns a view of the breaker for inspection.
func (b *Breaker) Snapshot() Snapshot {
	state := b.cb.State()
	counts := b.cb.Counts()

	snap := Snapshot{
		Name:                b.name,
		State:               fromGobreaker(state),
		Requests:            counts.Requests - counts.TotalExclusions,
		Failures:            counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		LastTransition:      time.Unix(0, b.lastTransition.Load()),
	}
	if snap.Requests > 0 {
		snap.FailureRate = float64(snap.Failures) / float64(snap.Requests)
	}
	if until := b.openUntil.Load(); until > 0 && state == gobreaker.StateOpen {
		snap.OpenUntil = time.Unix(0, until)
	}
	return snap
}

// Execute runs fn through b.
//
// Calls rejected by an open (or saturated half-open) breaker return an error
// wrapping ErrOpen without invoking fn. If ctx ends before fn returns, Execute
// returns ctx.Err() immediately and fn is abandoned: its eventual result is
// discarded. Either way the outcome is reported to the breaker exactly once.
// A context.Canceled outcome is not counted as a dependency failure.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	res, err := b.cb.Execute(func() (any, error) {
		return callWithContext(ctx, fn)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return zero, fmt.Errorf("%s: %w", b.name, ErrOpen)
	case errors.Is(err, context.Canceled):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "excluded").Inc()
		return zero, err
	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return zero, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	typed, _ := res.(T)
	return typed, nil
}

type callResult[T any] struct {
	value T
	err   error
}

func callWithContext[T any](ctx context.Context, fn func(context.Context) (T, error)) (any, error) {
	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- callResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Registry hands out breakers keyed by dependency name.
type Registry struct {
	defaults  Settings
	overrides map[string]Settings
	logger    zerolog.Logger

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates a registry. overrides replaces the defaults for specific names.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRegistry(defaults Settings, overrides map[string]Settings, logger zerolog.Logger) *Registry {
	o := make(map[string]Settings, len(overrides))
	for name, s := range overrides {
		o[name] = s
	}
	return &Registry{
		defaults:  defaults,
		overrides: o,
		logger:    logger.With().Str("component", "breaker").Logger(),
		breakers:  make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}

	settings := r.defaults
	if s, ok := r.overrides[name]; ok {
		settings = s
	}
	b = newBreaker(name, settings, r.logger)
	r.breakers[name] = b
	return b
}

// Snapshots returns a snapshot of every breaker created so far, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	list := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, len(list))
	for i, b := range list {
		out[i] = b.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
