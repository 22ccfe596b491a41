package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/observability"
)

const providerName = "mapbox"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// ForwardGeocode converts a place name to coordinates. Coastal and water
// names often resolve to regions or points of interest rather than towns, so
// no type filter is applied.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	start := time.Now()
	result, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, domain.ErrNoGeocodeResult):
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "empty").Inc()
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "error").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues(providerName, "success").Inc()
		c.logger.Debug("mapbox geocode", "query", query, "lat", result.Lat, "lon", result.Lon, "relevance", result.Confidence)
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
		return domain.GeocodingResult{}, fmt.Errorf("forward geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 || len(mapboxResp.Features[0].Center) != 2 {
		return domain.GeocodingResult{}, domain.ErrNoGeocodeResult
	}

	f := mapboxResp.Features[0]
	return domain.GeocodingResult{
		Lon:              f.Center[0],
		Lat:              f.Center[1],
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
