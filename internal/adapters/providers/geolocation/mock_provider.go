package geolocation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/berez-app/berez/backend/internal/domain/providers"
)

// MockGeolocationProvider resolves a few known city centers and names the nearest one for coordinates
type MockGeolocationProvider struct{}

var _ providers.GeolocationProvider = (*MockGeolocationProvider)(nil)

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() *MockGeolocationProvider {
	return &MockGeolocationProvider{}
}

var mockCities = []struct {
	name   string
	coords providers.Coordinates
}{
	{"Tel Aviv", providers.Coordinates{Latitude: 32.0853, Longitude: 34.7818}},
	{"Jerusalem", providers.Coordinates{Latitude: 31.7683, Longitude: 35.2137}},
	{"Haifa", providers.Coordinates{Latitude: 32.7940, Longitude: 34.9896}},
	{"Beer Sheva", providers.Coordinates{Latitude: 31.2520, Longitude: 34.7915}},
}

// Geocode matches a known city name inside address
func (m *MockGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.GeocodedAddress, error) {
	for _, c := range mockCities {
		if strings.Contains(strings.ToLower(address), strings.ToLower(c.name)) {
			return &providers.GeocodedAddress{
				FormattedAddress: address,
				City:             c.name,
				Country:          "Israel",
				Coordinates:      c.coords,
			}, nil
		}
	}
	return nil, fmt.Errorf("no geocoding results for %q", address)
}

// ReverseGeocode names the closest known city
func (m *MockGeolocationProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (*providers.GeocodedAddress, error) {
	best := mockCities[0]
	bestDist := math.MaxFloat64
	for _, c := range mockCities {
		dx, dy := c.coords.Longitude-lon, c.coords.Latitude-lat
		if d := dx*dx + dy*dy; d < bestDist {
			best, bestDist = c, d
		}
	}
	return &providers.GeocodedAddress{
		FormattedAddress: fmt.Sprintf("%.5f, %.5f, %s", lat, lon, best.name),
		City:             best.name,
		Country:          "Israel",
		Coordinates:      providers.Coordinates{Latitude: lat, Longitude: lon},
	}, nil
}
