// Package geolocation resolves the user's position for the "use my location" action.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// DefaultTimeout bounds a single Locate call.
const DefaultTimeout = 10 * time.Second

var (
	// ErrGeolocation marks every failure to obtain a position.
	ErrGeolocation = errors.New("geolocation failed")
	// ErrDenied is returned when the user refused to share a position.
	ErrDenied = fmt.Errorf("%w: permission denied", ErrGeolocation)
	// ErrUnavailable is returned when no position has been reported.
	ErrUnavailable = fmt.Errorf("%w: position unavailable", ErrGeolocation)
	// ErrTimeout is returned when the locator did not answer in time.
	ErrTimeout = fmt.Errorf("%w: timed out", ErrGeolocation)
)

// Locator yields the current position.
type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (models.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (models.Coordinates, error) {
	return f(ctx)
}

type timeoutLocator struct {
	inner   Locator
	timeout time.Duration
}

// WithTimeout bounds inner by timeout (DefaultTimeout if zero). Deadline
// expiry is reported as ErrTimeout; other failures not already wrapping
// ErrGeolocation are wrapped with it.
func WithTimeout(inner Locator, timeout time.Duration) Locator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutLocator{inner: inner, timeout: timeout}
}

func (t *timeoutLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		pos models.Coordinates
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := t.inner.Locate(ctx)
		done <- result{pos, err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.pos, nil
		}
		if errors.Is(r.err, context.DeadlineExceeded) {
			return models.Coordinates{}, ErrTimeout
		}
		if errors.Is(r.err, ErrGeolocation) {
			return models.Coordinates{}, r.err
		}
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrGeolocation, r.err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Coordinates{}, ErrTimeout
		}
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrGeolocation, ctx.Err())
	}
}

// StaticLocator always returns the configured position.
type StaticLocator struct {
	Position models.Coordinates
}

func (s StaticLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	return s.Position, nil
}

// ReportedLocator returns the last position reported by the browser, or the
// denial it reported.
type ReportedLocator struct {
	mu       sync.Mutex
	pos      models.Coordinates
	reported bool
	denied   bool
}

// Report records a position and clears any earlier denial.
func (r *ReportedLocator) Report(pos models.Coordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = pos
	r.reported = true
	r.denied = false
}

// Deny records that the user refused to share a position.
func (r *ReportedLocator) Deny() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = false
	r.denied = true
}

func (r *ReportedLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.denied:
		return models.Coordinates{}, ErrDenied
	case !r.reported:
		return models.Coordinates{}, ErrUnavailable
	}
	return r.pos, nil
}
