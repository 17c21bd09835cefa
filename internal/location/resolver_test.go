package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// providerStub implements Provider with per-step function fields.
type providerStub struct {
	servicesEnabledFn   func(context.Context) (bool, error)
	requestPermissionFn func(context.Context) (bool, error)
	currentPositionFn   func(context.Context) (*Position, error)
	lastKnownPositionFn func(context.Context) (*Position, error)
}

func (s *providerStub) ServicesEnabled(ctx context.Context) (bool, error) {
	return s.servicesEnabledFn(ctx)
}
func (s *providerStub) RequestPermission(ctx context.Context) (bool, error) {
	return s.requestPermissionFn(ctx)
}
func (s *providerStub) CurrentPosition(ctx context.Context) (*Position, error) {
	return s.currentPositionFn(ctx)
}
func (s *providerStub) LastKnownPosition(ctx context.Context) (*Position, error) {
	return s.lastKnownPositionFn(ctx)
}

type geocoderStub struct {
	fn func(context.Context, float64, float64) (string, error)
}

func (s *geocoderStub) ReverseGeocode(ctx context.Context, lat, long float64) (string, error) {
	return s.fn(ctx, lat, long)
}

// happyProvider returns a provider where every step succeeds.
func happyProvider() *providerStub {
	return &providerStub{
		servicesEnabledFn:   func(context.Context) (bool, error) { return true, nil },
		requestPermissionFn: func(context.Context) (bool, error) { return true, nil },
		currentPositionFn: func(context.Context) (*Position, error) {
			return &Position{Latitude: 18.08, Longitude: -77.27}, nil
		},
		lastKnownPositionFn: func(context.Context) (*Position, error) { return nil, nil },
	}
}

func placeGeocoder(place string) *geocoderStub {
	return &geocoderStub{fn: func(context.Context, float64, float64) (string, error) {
		return place, nil
	}}
}

func TestResolveHappyPath(t *testing.T) {
	resolver := NewResolver(happyProvider(), placeGeocoder("Chapelton, Jamaica"))
	assert.Equal(t, "Chapelton, Jamaica", resolver.Resolve(context.Background()))
}

func TestResolveLocationServicesOff(t *testing.T) {
	provider := happyProvider()
	provider.servicesEnabledFn = func(context.Context) (bool, error) { return false, nil }

	resolver := NewResolver(provider, placeGeocoder("anywhere"))
	assert.Equal(t, "Location Off", resolver.Resolve(context.Background()))
}

func TestResolvePermissionDenied(t *testing.T) {
	provider := happyProvider()
	provider.requestPermissionFn = func(context.Context) (bool, error) { return false, nil }

	resolver := NewResolver(provider, placeGeocoder("anywhere"))
	assert.Equal(t, "Permission Denied", resolver.Resolve(context.Background()))
}

func TestResolveFixTimeoutWithoutLastKnown(t *testing.T) {
	provider := happyProvider()
	// A fix that never settles within the bound.
	provider.currentPositionFn = func(ctx context.Context) (*Position, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	provider.lastKnownPositionFn = func(context.Context) (*Position, error) { return nil, nil }

	resolver := NewResolver(provider, placeGeocoder("anywhere"))
	resolver.FixTimeout = 20 * time.Millisecond

	start := time.Now()
	result := resolver.Resolve(context.Background())
	assert.Equal(t, "No GPS Data", result)
	assert.Less(t, time.Since(start), time.Second, "the stuck fix must be abandoned, not awaited")
}

func TestResolveFallsBackToLastKnownPosition(t *testing.T) {
	provider := happyProvider()
	provider.currentPositionFn = func(context.Context) (*Position, error) {
		return nil, errors.New("gps hardware error")
	}
	provider.lastKnownPositionFn = func(context.Context) (*Position, error) {
		return &Position{Latitude: 17.99, Longitude: -76.79}, nil
	}

	var sawLat, sawLong float64
	geocoder := &geocoderStub{fn: func(_ context.Context, lat, long float64) (string, error) {
		sawLat, sawLong = lat, long
		return "Kingston, Jamaica", nil
	}}

	resolver := NewResolver(provider, geocoder)
	require.Equal(t, "Kingston, Jamaica", resolver.Resolve(context.Background()))
	assert.Equal(t, 17.99, sawLat)
	assert.Equal(t, -76.79, sawLong)
}

func TestResolveMalformedGeocodeResponse(t *testing.T) {
	resolver := NewResolver(happyProvider(), &geocoderStub{
		fn: func(context.Context, float64, float64) (string, error) {
			return "", ErrMalformedResponse
		},
	})
	assert.Equal(t, "Unknown Response", resolver.Resolve(context.Background()))
}

func TestResolveNetworkFailures(t *testing.T) {
	transportErr := errors.New("connection refused")

	t.Run("geocoder transport failure", func(t *testing.T) {
		resolver := NewResolver(happyProvider(), &geocoderStub{
			fn: func(context.Context, float64, float64) (string, error) {
				return "", transportErr
			},
		})
		assert.Equal(t, "Network Error", resolver.Resolve(context.Background()))
	})

	t.Run("provider status failure", func(t *testing.T) {
		provider := happyProvider()
		provider.servicesEnabledFn = func(context.Context) (bool, error) { return false, transportErr }
		resolver := NewResolver(provider, placeGeocoder("anywhere"))
		assert.Equal(t, "Network Error", resolver.Resolve(context.Background()))
	})

	t.Run("permission request failure", func(t *testing.T) {
		provider := happyProvider()
		provider.requestPermissionFn = func(context.Context) (bool, error) { return false, transportErr }
		resolver := NewResolver(provider, placeGeocoder("anywhere"))
		assert.Equal(t, "Network Error", resolver.Resolve(context.Background()))
	})
}

func TestResolveTimedOutFixUsesLastKnown(t *testing.T) {
	fixStarted := make(chan struct{})
	provider := happyProvider()
	provider.currentPositionFn = func(context.Context) (*Position, error) {
		close(fixStarted)
		// Never settles; Resolve must not wait for it.
		select {}
	}
	provider.lastKnownPositionFn = func(context.Context) (*Position, error) {
		return &Position{Latitude: 18.01, Longitude: -76.8}, nil
	}

	resolver := NewResolver(provider, placeGeocoder("Spanish Town, Jamaica"))
	resolver.FixTimeout = 20 * time.Millisecond

	assert.Equal(t, "Spanish Town, Jamaica", resolver.Resolve(context.Background()))
	<-fixStarted
}
