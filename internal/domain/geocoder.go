package domain

import (
	"context"
	"errors"
)

// ErrNoGeocodeResult is returned by a Geocoder when the provider answered but
// had no match for the query.
var ErrNoGeocodeResult = errors.New("no geocoding result")

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Point returns the result's coordinates.
func (r GeocodingResult) Point() GeoPoint {
	return GeoPoint{Lat: r.Lat, Lon: r.Lon}
}

// Geocoder resolves free-text place names to coordinates.
type Geocoder interface {
	// ForwardGeocode converts a place name to coordinates. It returns
	// ErrNoGeocodeResult when the provider has no match.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}
