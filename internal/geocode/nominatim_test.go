package geocode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch/caniburn/internal/fire"
	"github.com/firewatch/caniburn/internal/geo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *NominatimClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewNominatimClient(&http.Client{Timeout: 5 * time.Second}, testLogger())
	c.baseURL = srv.URL
	return c
}

func TestReverseGeocode_CanadianAddress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "43.65", r.URL.Query().Get("lat"))
		assert.Equal(t, "-79.38", r.URL.Query().Get("lon"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "caniburn/1.0", r.Header.Get("User-Agent"))

		fmt.Fprint(w, `{
			"display_name": "Toronto, Golden Horseshoe, Ontario, Canada",
			"address": {
				"county": "Toronto",
				"state": "Ontario",
				"country": "Canada",
				"country_code": "ca"
			}
		}`)
	})

	loc, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 43.65, Longitude: -79.38})
	require.NoError(t, err)

	assert.Equal(t, fire.Location{
		Province: "Ontario",
		State:    "Ontario",
		County:   "Toronto",
		Country:  "Canada",
	}, loc)
}

func TestReverseGeocode_USCountryCodeMapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"address": {
				"county": "Los Angeles County",
				"state": "California",
				"country": "USA",
				"country_code": "us"
			}
		}`)
	})

	loc, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 34.05, Longitude: -118.24})
	require.NoError(t, err)

	assert.Equal(t, "United States", loc.Country)
	assert.Equal(t, "California", loc.Province)
	assert.Equal(t, "California", loc.State)
}

func TestReverseGeocode_OtherCountryPassesThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"address": {
				"state": "Bavaria",
				"country": "Germany",
				"country_code": "de"
			}
		}`)
	})

	loc, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 48.14, Longitude: 11.58})
	require.NoError(t, err)

	assert.Equal(t, "Germany", loc.Country)
	assert.Equal(t, "Unknown County", loc.County)
}

func TestReverseGeocode_CountySalvagedFromDisplayName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"display_name": "123 Main St, Regional Municipality of York, Ontario, Canada",
			"address": {
				"state": "Ontario",
				"country": "Canada",
				"country_code": "ca"
			}
		}`)
	})

	loc, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 44, Longitude: -79.5})
	require.NoError(t, err)
	assert.Equal(t, "Regional Municipality of York", loc.County)
}

func TestReverseGeocode_StateDistrictFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"address": {
				"state_district": "Golden Horseshoe",
				"state": "Ontario",
				"country": "Canada",
				"country_code": "ca"
			}
		}`)
	})

	loc, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 43.7, Longitude: -79.4})
	require.NoError(t, err)
	assert.Equal(t, "Golden Horseshoe", loc.County)
}

func TestReverseGeocode_MissingRegionNotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no address object", `{"display_name": "Atlantic Ocean"}`},
		{"no country", `{"address": {"state": "Ontario"}}`},
		{"no province or state", `{"address": {"country": "Canada", "country_code": "ca"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})

			_, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 43.65, Longitude: -79.38})
			require.Error(t, err)
			assert.Equal(t, fire.CodeLocationNotFound, fire.CodeOf(err))
		})
	}
}

func TestReverseGeocode_ServerFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	})

	_, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 43.65, Longitude: -79.38})
	require.Error(t, err)
	assert.Equal(t, fire.CodeExternalService, fire.CodeOf(err))
}

func TestReverseGeocode_MalformedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	})

	_, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 43.65, Longitude: -79.38})
	require.Error(t, err)
	assert.Equal(t, fire.CodeExternalService, fire.CodeOf(err))
}

func TestReverseGeocode_InvalidCoordinatesNoRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.ReverseGeocode(context.Background(), geo.Coordinates{Latitude: 120, Longitude: 0})
	require.Error(t, err)
	assert.Equal(t, fire.CodeInvalidCoordinates, fire.CodeOf(err))
	assert.False(t, called)
}
