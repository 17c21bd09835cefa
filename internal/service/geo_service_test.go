package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"epiwatch/role-portal/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geocoderConfig(upstreamURL string) config.GeocoderConfig {
	return config.GeocoderConfig{
		BaseURL:  upstreamURL,
		Timeout:  2 * time.Second,
		CacheTTL: time.Hour,
	}
}

func TestResolvePlaceFormatsLocalityAndCountry(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "18.08", r.URL.Query().Get("latitude"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"locality":"Chapelton","principalSubdivision":"Clarendon","countryName":"Jamaica"}`))
	}))
	defer upstream.Close()

	svc := NewGeoService(geocoderConfig(upstream.URL), nil, zerolog.Nop())

	place, err := svc.ResolvePlace(context.Background(), 18.08, -77.27)
	require.NoError(t, err)
	assert.Equal(t, "Chapelton, Jamaica", place)
}

func TestResolvePlaceFallsBackThroughComponents(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"city":"Kingston","countryName":"Jamaica"}`))
	}))
	defer upstream.Close()

	svc := NewGeoService(geocoderConfig(upstream.URL), nil, zerolog.Nop())

	place, err := svc.ResolvePlace(context.Background(), 17.99, -76.79)
	require.NoError(t, err)
	assert.Equal(t, "Kingston, Jamaica", place)
}

func TestResolvePlaceUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	svc := NewGeoService(geocoderConfig(upstream.URL), nil, zerolog.Nop())

	_, err := svc.ResolvePlace(context.Background(), 18.08, -77.27)
	assert.ErrorIs(t, err, ErrGeocodeUnavailable)
}

func TestResolvePlaceEmptyResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	svc := NewGeoService(geocoderConfig(upstream.URL), nil, zerolog.Nop())

	_, err := svc.ResolvePlace(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrGeocodeUnavailable)
}

func TestResolvePlaceCachesByRoundedCoordinates(t *testing.T) {
	var upstreamHits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&upstreamHits, 1)
		w.Write([]byte(`{"locality":"Chapelton","countryName":"Jamaica"}`))
	}))
	defer upstream.Close()

	mr := miniredis.RunT(t)
	cacheClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	svc := NewGeoService(geocoderConfig(upstream.URL), cacheClient, zerolog.Nop())
	ctx := context.Background()

	place, err := svc.ResolvePlace(ctx, 18.08012, -77.27034)
	require.NoError(t, err)
	require.Equal(t, "Chapelton, Jamaica", place)

	// A nearby coordinate rounds to the same cache key: no second upstream hit.
	place, err = svc.ResolvePlace(ctx, 18.08049, -77.27012)
	require.NoError(t, err)
	assert.Equal(t, "Chapelton, Jamaica", place)
	assert.Equal(t, int32(1), atomic.LoadInt32(&upstreamHits))
}
