package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"epiwatch/role-portal/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrGeocodeUnavailable = errors.New("reverse geocoding failed")

// GeoService resolves a coordinate pair to a human-readable place name via
// an external reverse-geocoding API. Results are cached by rounded
// coordinates so repeated session refreshes from the same spot do not hit
// the upstream service.
type GeoService interface {
	ResolvePlace(ctx context.Context, lat, long float64) (string, error)
}

type geoService struct {
	httpClient *http.Client
	baseURL    string
	cache      *redis.Client // optional; nil disables caching
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// NewGeoService creates a new instance of geoService.
func NewGeoService(cfg config.GeocoderConfig, cache *redis.Client, logger zerolog.Logger) GeoService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &geoService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		cache:      cache,
		cacheTTL:   ttl,
		logger:     logger,
	}
}

// reverseGeocodeResponse mirrors the fields we use from the upstream API.
type reverseGeocodeResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
}

// ResolvePlace returns a "Locality, Country" style place name for the
// coordinates, e.g. "Chapelton, Jamaica".
func (s *geoService) ResolvePlace(ctx context.Context, lat, long float64) (string, error) {
	cacheKey := fmt.Sprintf("geo:%.3f:%.3f", lat, long)

	if s.cache != nil {
		if place, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && place != "" {
			return place, nil
		}
	}

	place, err := s.lookup(ctx, lat, long)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, place, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache geocode result")
		}
	}
	return place, nil
}

func (s *geoService) lookup(ctx context.Context, lat, long float64) (string, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(long, 'f', -1, 64))
	query.Set("localityLanguage", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Msg("reverse geocode request failed")
		return "", ErrGeocodeUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error().Int("status", resp.StatusCode).Msg("reverse geocode upstream error")
		return "", ErrGeocodeUnavailable
	}

	var decoded reverseGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		s.logger.Error().Err(err).Msg("failed to decode reverse geocode response")
		return "", ErrGeocodeUnavailable
	}

	place := formatPlace(decoded)
	if place == "" {
		return "", ErrGeocodeUnavailable
	}
	return place, nil
}

// formatPlace builds the place string from the most specific available
// component plus the country.
func formatPlace(r reverseGeocodeResponse) string {
	locality := r.Locality
	if locality == "" {
		locality = r.City
	}
	if locality == "" {
		locality = r.PrincipalSubdivision
	}

	parts := make([]string, 0, 2)
	if locality != "" {
		parts = append(parts, locality)
	}
	if r.CountryName != "" {
		parts = append(parts, r.CountryName)
	}
	return strings.Join(parts, ", ")
}
