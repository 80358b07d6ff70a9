// Package geocode resolves coordinates to administrative locations through
// the Nominatim reverse-geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/firewatch/caniburn/internal/fire"
	"github.com/firewatch/caniburn/internal/geo"
	"github.com/firewatch/caniburn/internal/metrics"
)

const userAgent = "caniburn/1.0"

// NominatimClient implements fire.Geocoder against the OpenStreetMap
// Nominatim reverse endpoint.
type NominatimClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewNominatimClient(client *http.Client, logger *slog.Logger) *NominatimClient {
	return &NominatimClient{
		baseURL: "https://nominatim.openstreetmap.org/reverse",
		client:  client,
		logger:  logger,
	}
}

type nominatimAddress struct {
	County        string `json:"county"`
	StateDistrict string `json:"state_district"`
	State         string `json:"state"`
	Province      string `json:"province"`
	Country       string `json:"country"`
	CountryCode   string `json:"country_code"`
}

type nominatimResponse struct {
	Address     *nominatimAddress `json:"address"`
	DisplayName string            `json:"display_name"`
}

// ReverseGeocode resolves coordinates to a location. It fails with
// LOCATION_NOT_FOUND when the address yields no usable country or region,
// and EXTERNAL_SERVICE_ERROR on transport or decode faults.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, coords geo.Coordinates) (fire.Location, error) {
	if err := coords.Validate(); err != nil {
		return fire.Location{}, fire.NewInvalidCoordinates(coords.Latitude, coords.Longitude)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("zoom", "18")

	payload, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return fire.Location{}, fire.NewExternalServiceFailure("LocationService", err)
	}

	if payload.Address == nil {
		metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		return fire.Location{}, fire.NewLocationNotFound(coords.Latitude, coords.Longitude)
	}

	loc, ok := resolveLocation(payload)
	if !ok {
		metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		return fire.Location{}, fire.NewLocationNotFound(coords.Latitude, coords.Longitude)
	}

	metrics.GeocodeRequests.WithLabelValues("ok").Inc()
	return loc, nil
}

func (c *NominatimClient) doRequest(ctx context.Context, fullURL string) (*nominatimResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &payload, nil
}

// resolveLocation normalizes the Nominatim address into a Location. The
// location is unresolved (not a wildcard) when the country or the
// province/state cannot be determined.
func resolveLocation(payload *nominatimResponse) (fire.Location, bool) {
	addr := payload.Address

	var country string
	switch addr.CountryCode {
	case "ca":
		country = "Canada"
	case "us":
		country = "United States"
	default:
		country = addr.Country
	}

	province := firstNonEmpty(addr.Province, addr.State)
	state := firstNonEmpty(addr.State, addr.Province)

	county := firstNonEmpty(addr.County, addr.StateDistrict)
	if county == "" {
		county = countyFromDisplayName(payload.DisplayName)
	}
	if county == "" {
		county = "Unknown County"
	}

	if country == "" || province == "" {
		return fire.Location{}, false
	}

	return fire.Location{
		Province: province,
		State:    state,
		County:   county,
		Country:  country,
	}, true
}

// countyFromDisplayName salvages a county-like component from the
// geocoder's free-text display name.
func countyFromDisplayName(displayName string) string {
	for _, part := range strings.Split(displayName, ", ") {
		lower := strings.ToLower(part)
		if strings.Contains(lower, "county") ||
			strings.Contains(lower, "regional municipality") ||
			strings.Contains(lower, "district") {
			return strings.TrimSpace(part)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
