// Package location resolves coordinates to human-readable addresses.
// Geocoding is strictly best effort: the capsule flow never fails because an
// address could not be resolved.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/timeegg/backend/internal/geo"
)

// Geocoder turns a coordinate into an address string. An empty string with a
// nil error means no address was found.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (string, error)
}

// GoogleGeocoder calls the Google Maps Geocoding web API.
type GoogleGeocoder struct {
	apiKey string
	client *http.Client
}

// NewGoogleGeocoder creates a GoogleGeocoder with a request timeout suited
// to an inline best-effort lookup.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type geocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status string `json:"status"`
}

// ReverseGeocode returns the first formatted address for the coordinate.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", p.Latitude, p.Longitude))
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx,
		http.MethodGet, "https://maps.googleapis.com/maps/api/geocode/json?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode request failed with status %d", resp.StatusCode)
	}

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		return "", nil
	}
	return decoded.Results[0].FormattedAddress, nil
}

// Noop is a Geocoder that resolves nothing, used when no API key is
// configured.
type Noop struct{}

// ReverseGeocode always returns an empty address.
func (Noop) ReverseGeocode(context.Context, geo.Point) (string, error) {
	return "", nil
}
