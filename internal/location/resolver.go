// Package location implements the best-effort pipeline that enriches a
// session with a human-readable place name. The pipeline is linear, never
// retries, and degrades to a descriptive status string instead of
// propagating failures.
package location

import (
	"context"
	"errors"
	"time"
)

// Terminal status strings surfaced to the user when the pipeline cannot
// produce a place name.
const (
	StatusLocationOff      = "Location Off"
	StatusPermissionDenied = "Permission Denied"
	StatusNoGPSData        = "No GPS Data"
	StatusUnknownResponse  = "Unknown Response"
	StatusNetworkError     = "Network Error"
)

// DefaultFixTimeout bounds the wait for a fresh position fix.
const DefaultFixTimeout = 5 * time.Second

var (
	// ErrMalformedResponse marks a geocoding reply that arrived but did not
	// carry a usable place name.
	ErrMalformedResponse = errors.New("geocoding response missing location")

	errFixTimeout = errors.New("position fix timed out")
)

// Position is a device coordinate pair.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Provider abstracts the device location services.
type Provider interface {
	// ServicesEnabled reports whether the device location services are on.
	ServicesEnabled(ctx context.Context) (bool, error)
	// RequestPermission asks for foreground location permission.
	RequestPermission(ctx context.Context) (granted bool, err error)
	// CurrentPosition attempts a fresh position fix. May block indefinitely;
	// the resolver bounds the wait.
	CurrentPosition(ctx context.Context) (*Position, error)
	// LastKnownPosition returns the most recently cached device position,
	// or nil when none is available.
	LastKnownPosition(ctx context.Context) (*Position, error)
}

// Geocoder exchanges a coordinate pair for a place name via a remote lookup.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, long float64) (string, error)
}

// Resolver runs the location pipeline. It holds no state between runs; every
// refresh or screen mount re-runs the full sequence.
type Resolver struct {
	provider Provider
	geocoder Geocoder

	// FixTimeout bounds the fresh-fix wait. Defaults to DefaultFixTimeout.
	FixTimeout time.Duration
}

// NewResolver creates a Resolver over the given device provider and remote
// geocoder.
func NewResolver(provider Provider, geocoder Geocoder) *Resolver {
	return &Resolver{
		provider:   provider,
		geocoder:   geocoder,
		FixTimeout: DefaultFixTimeout,
	}
}

// Resolve runs the pipeline and always returns a displayable string: either
// the resolved place name or one of the terminal status strings.
func (r *Resolver) Resolve(ctx context.Context) string {
	enabled, err := r.provider.ServicesEnabled(ctx)
	if err != nil {
		return StatusNetworkError
	}
	if !enabled {
		return StatusLocationOff
	}

	granted, err := r.provider.RequestPermission(ctx)
	if err != nil {
		return StatusNetworkError
	}
	if !granted {
		return StatusPermissionDenied
	}

	position, err := r.freshFix(ctx)
	if err != nil {
		// Timeout or fix failure falls back to the last cached position;
		// a fallback failure is treated the same as no data.
		position, _ = r.provider.LastKnownPosition(ctx)
	}
	if position == nil {
		return StatusNoGPSData
	}

	place, err := r.geocoder.ReverseGeocode(ctx, position.Latitude, position.Longitude)
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			return StatusUnknownResponse
		}
		return StatusNetworkError
	}
	if place == "" {
		return StatusUnknownResponse
	}
	return place
}

// freshFix races the provider's position fix against a timer. The first to
// settle wins; a losing fix is abandoned, not cancelled at the OS level, so
// the fix goroutine writes into a buffered channel and is left to finish on
// its own.
func (r *Resolver) freshFix(ctx context.Context) (*Position, error) {
	timeout := r.FixTimeout
	if timeout <= 0 {
		timeout = DefaultFixTimeout
	}

	type fixResult struct {
		position *Position
		err      error
	}
	results := make(chan fixResult, 1)
	go func() {
		position, err := r.provider.CurrentPosition(ctx)
		results <- fixResult{position: position, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-results:
		return result.position, result.err
	case <-timer.C:
		return nil, errFixTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
