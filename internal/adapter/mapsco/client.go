// Package mapsco implements domain.Geocoder against the geocode.maps.co
// search API.
package mapsco

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/observability"
)

const providerName = "mapsco"

// Client implements domain.Geocoder using geocode.maps.co.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a maps.co geocoding client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://geocode.maps.co",
		metrics:    metrics,
		logger:     logger,
	}
}

// ForwardGeocode returns the first search hit for query.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.GeocodingResult{}, domain.ErrNoGeocodeResult
	}
	params := url.Values{
		"q":       {query},
		"api_key": {c.apiKey},
	}

	start := time.Now()
	result, err := c.doRequest(ctx, c.baseURL+"/search?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, domain.ErrNoGeocodeResult):
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "empty").Inc()
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "error").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "success").Inc()
		c.logger.Debug("maps.co geocode", "query", query, "lat", result.Lat, "lon", result.Lon)
	}
	return result, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("maps.co API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return domain.GeocodingResult{}, domain.ErrNoGeocodeResult
	}

	p := places[0]
	lat, errLat := strconv.ParseFloat(p.Lat, 64)
	lon, errLon := strconv.ParseFloat(p.Lon, 64)
	if errLat != nil || errLon != nil {
		return domain.GeocodingResult{}, domain.ErrNoGeocodeResult
	}
	return domain.GeocodingResult{
		Lat:              lat,
		Lon:              lon,
		FormattedAddress: p.DisplayName,
		PlaceName:        firstSegment(p.DisplayName),
		Confidence:       p.Importance,
	}, nil
}

func firstSegment(displayName string) string {
	name, _, _ := strings.Cut(displayName, ",")
	return strings.TrimSpace(name)
}

// maps.co returns coordinates as strings.
type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}
