package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/firewatch/caniburn/internal/fire"
	"github.com/firewatch/caniburn/internal/geo"
	"github.com/firewatch/caniburn/internal/metrics"
)

const (
	cwfisName = "Canadian Wildland Fire Information System"

	// nearbyFireRadiusKm is the client-side distance gate for coordinate
	// queries; the WFS bounding box is fetched wider and re-checked.
	nearbyFireRadiusKm = 25
	nearbyFetchRadius  = 50
)

// cwfisCoverage gates coordinate queries to the approximate Canada box.
var cwfisCoverage = geo.BoundingBox{MinLat: 41.7, MaxLat: 83.1, MinLon: -141, MaxLon: -52.6}

var knownProvinces = []string{
	"Alberta",
	"British Columbia",
	"Manitoba",
	"New Brunswick",
	"Newfoundland and Labrador",
	"Northwest Territories",
	"Nova Scotia",
	"Nunavut",
	"Ontario",
	"Prince Edward Island",
	"Quebec",
	"Saskatchewan",
	"Yukon",
}

// agencyCodes maps provinces to the agency filter codes used by the active
// fires layer.
var agencyCodes = map[string]string{
	"Alberta":                   "ab",
	"British Columbia":          "bc",
	"Manitoba":                  "mb",
	"New Brunswick":             "nb",
	"Newfoundland and Labrador": "nl",
	"Northwest Territories":     "nt",
	"Nova Scotia":               "ns",
	"Nunavut":                   "nu",
	"Ontario":                   "on",
	"Prince Edward Island":      "pe",
	"Quebec":                    "qc",
	"Saskatchewan":              "sk",
	"Yukon":                     "yt",
}

// provinceCentroids holds approximate center coordinates used to anchor the
// fire-weather lookup for location queries.
var provinceCentroids = map[string]geo.Coordinates{
	"Alberta":                   {Latitude: 53.9333, Longitude: -116.5765},
	"British Columbia":          {Latitude: 53.7267, Longitude: -127.6476},
	"Manitoba":                  {Latitude: 53.7609, Longitude: -98.8139},
	"New Brunswick":             {Latitude: 46.5653, Longitude: -66.4619},
	"Newfoundland and Labrador": {Latitude: 53.1355, Longitude: -57.6604},
	"Northwest Territories":     {Latitude: 64.8255, Longitude: -124.8457},
	"Nova Scotia":               {Latitude: 44.682, Longitude: -63.7443},
	"Nunavut":                   {Latitude: 70.2998, Longitude: -83.1076},
	"Ontario":                   {Latitude: 51.2538, Longitude: -85.3232},
	"Prince Edward Island":      {Latitude: 46.5107, Longitude: -63.4168},
	"Quebec":                    {Latitude: 53.9214, Longitude: -73.2492},
	"Saskatchewan":              {Latitude: 52.9399, Longitude: -106.4509},
	"Yukon":                     {Latitude: 64.0685, Longitude: -139.0686},
}

// regionFire is one active-fire feature from the WFS layer.
type regionFire struct {
	Firename       string
	Lat            float64
	Lon            float64
	Startdate      string
	Hectares       float64
	StageOfControl string
	Agency         string
	ResponseType   string
}

// fireWeather is the fire-weather-index bundle from the station layer. Only
// FWI drives classification; the remaining indices are carried through.
type fireWeather struct {
	FWI     float64
	FFMC    float64
	DMC     float64
	DC      float64
	ISI     float64
	BUI     float64
	DSR     float64
	RepDate string
	Station string
	Agency  string
	Prov    string
	Lat     float64
	Lon     float64
}

// dangerRating is the classified fire danger level derived from FWI.
type dangerRating struct {
	Level string
	Index int
}

// CwfisProvider interprets Canadian regulatory and fire-weather data from
// the CWFIS WFS feeds. All internal failures are absorbed into an absent
// answer; this provider never propagates errors to its caller.
type CwfisProvider struct {
	name        string
	baseURL     string
	client      *http.Client
	circuit     *gobreaker.CircuitBreaker
	firesCache  *ttlCache[[]regionFire]
	ratingCache *ttlCache[*dangerRating]
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewCwfisProvider(client *http.Client, ttl time.Duration, logger *slog.Logger) *CwfisProvider {
	clock := clockwork.NewRealClock()
	return &CwfisProvider{
		name:        cwfisName,
		baseURL:     "https://cwfis.cfs.nrcan.gc.ca/geoserver/ows",
		client:      client,
		circuit:     newBreaker("cwfis"),
		firesCache:  newTTLCache[[]regionFire](ttl, clock),
		ratingCache: newTTLCache[*dangerRating](ttl, clock),
		clock:       clock,
		logger:      logger,
	}
}

func (p *CwfisProvider) Name() string {
	return p.name
}

func (p *CwfisProvider) Coverage() []string {
	return []string{"Canada"}
}

func (p *CwfisProvider) SupportsLocation(loc fire.Location) bool {
	return loc.Country == "Canada"
}

func (p *CwfisProvider) SupportsCoordinates(c geo.Coordinates) bool {
	return cwfisCoverage.Contains(c)
}

func (p *CwfisProvider) StatusForLocation(ctx context.Context, loc fire.Location) (*fire.StatusRecord, error) {
	if !p.SupportsLocation(loc) {
		return nil, nil
	}

	// Unrecognized sub-regions defer to the aggregator's fallbacks.
	if !isKnownProvince(loc.Province) {
		return nil, nil
	}

	fires, err := p.regionFires(ctx, loc.Province)
	if err != nil {
		p.logger.Warn("CWFIS provider failed for location", "province", loc.Province, "error", err)
		return nil, nil
	}

	rating := p.provinceRating(ctx, loc.Province)

	return p.interpret(fires, rating, loc.Province), nil
}

func (p *CwfisProvider) StatusForCoordinates(ctx context.Context, c geo.Coordinates) (*fire.StatusRecord, error) {
	if !p.SupportsCoordinates(c) {
		return nil, nil
	}

	fires, err := p.nearbyFires(ctx, c)
	if err != nil {
		p.logger.Warn("CWFIS provider failed for coordinates",
			"lat", c.Latitude, "lon", c.Longitude, "error", err)
		return nil, nil
	}

	rating := p.coordinateRating(ctx, c)

	return p.interpretCoordinates(fires, rating, c), nil
}

func isKnownProvince(province string) bool {
	for _, known := range knownProvinces {
		if province == known {
			return true
		}
	}
	return false
}

// agencyCode resolves the WFS agency filter for a province, falling back to
// the first two characters lower-cased.
func agencyCode(province string) string {
	if code, ok := agencyCodes[province]; ok {
		return code
	}
	code := strings.ToLower(province)
	if len(code) > 2 {
		code = code[:2]
	}
	return code
}

func (p *CwfisProvider) regionFires(ctx context.Context, province string) ([]regionFire, error) {
	cacheKey := "fires_" + province
	if cached, ok := p.firesCache.get(cacheKey); ok {
		metrics.CacheEvents.WithLabelValues(p.name, "hit").Inc()
		return cached, nil
	}
	metrics.CacheEvents.WithLabelValues(p.name, "miss").Inc()

	params := wfsParams("public:activefires_current")
	params.Set("CQL_FILTER", fmt.Sprintf("agency = '%s'", agencyCode(province)))

	fires, err := p.fetchFires(ctx, params)
	if err != nil {
		return nil, err
	}

	p.firesCache.put(cacheKey, fires)
	return fires, nil
}

func (p *CwfisProvider) nearbyFires(ctx context.Context, c geo.Coordinates) ([]regionFire, error) {
	cacheKey := fmt.Sprintf("nearby_%.3f_%.3f", c.Latitude, c.Longitude)
	if cached, ok := p.firesCache.get(cacheKey); ok {
		metrics.CacheEvents.WithLabelValues(p.name, "hit").Inc()
		return cached, nil
	}
	metrics.CacheEvents.WithLabelValues(p.name, "miss").Inc()

	box := geo.BoxAround(c, nearbyFetchRadius)
	params := wfsParams("public:activefires_current")
	params.Set("bbox", fmt.Sprintf("%f,%f,%f,%f", box.MinLon, box.MinLat, box.MaxLon, box.MaxLat))

	fires, err := p.fetchFires(ctx, params)
	if err != nil {
		return nil, err
	}

	p.firesCache.put(cacheKey, fires)
	return fires, nil
}

// provinceRating anchors the fire-weather lookup at the province centroid.
// Unknown centroid means no rating.
func (p *CwfisProvider) provinceRating(ctx context.Context, province string) *dangerRating {
	centroid, ok := provinceCentroids[province]
	if !ok {
		return nil
	}
	return p.coordinateRating(ctx, centroid)
}

func (p *CwfisProvider) coordinateRating(ctx context.Context, c geo.Coordinates) *dangerRating {
	cacheKey := fmt.Sprintf("fire_weather_%.3f_%.3f", c.Latitude, c.Longitude)
	if cached, ok := p.ratingCache.get(cacheKey); ok {
		metrics.CacheEvents.WithLabelValues(p.name, "hit").Inc()
		return cached
	}
	metrics.CacheEvents.WithLabelValues(p.name, "miss").Inc()

	params := wfsParams("public:firewx_stns_current")
	params.Set("CQL_FILTER",
		fmt.Sprintf("DWITHIN(the_geom, POINT(%f %f), 50000, meters)", c.Longitude, c.Latitude))

	body, err := p.fetch(ctx, params)
	if err != nil {
		p.logger.Warn("failed to fetch CWFIS fire weather data", "error", err)
		return nil
	}

	weather := parseFireWeather(body)
	if weather == nil {
		return nil
	}

	rating := classifyFWI(weather.FWI)
	p.ratingCache.put(cacheKey, rating)
	return rating
}

func (p *CwfisProvider) fetchFires(ctx context.Context, params url.Values) ([]regionFire, error) {
	body, err := p.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	return parseFireFeatures(body)
}

func (p *CwfisProvider) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	body, err := fetchBody(ctx, p.client, p.circuit, p.baseURL+"?"+params.Encode())
	if err != nil {
		if isRateLimited(err) {
			metrics.ProviderRequests.WithLabelValues(p.name, "rate_limited").Inc()
		} else {
			metrics.ProviderRequests.WithLabelValues(p.name, "error").Inc()
		}
		return nil, err
	}
	metrics.ProviderRequests.WithLabelValues(p.name, "ok").Inc()
	return body, nil
}

func wfsParams(typeName string) url.Values {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeName", typeName)
	params.Set("outputFormat", "application/json")
	return params
}

// --- GeoJSON decoding ---

type geometryObj struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// centroid extracts a representative point: polygon features use the
// arithmetic mean of their outer ring vertices, point features the point
// itself, anything else degenerates to (0,0).
func (g *geometryObj) centroid() geo.Coordinates {
	if g == nil {
		return geo.Coordinates{}
	}

	switch g.Type {
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil || len(rings) == 0 || len(rings[0]) == 0 {
			return geo.Coordinates{}
		}
		var latSum, lonSum float64
		for _, vertex := range rings[0] {
			lonSum += vertex[0]
			latSum += vertex[1]
		}
		n := float64(len(rings[0]))
		return geo.Coordinates{Latitude: latSum / n, Longitude: lonSum / n}

	case "Point":
		var point [2]float64
		if err := json.Unmarshal(g.Coordinates, &point); err != nil {
			return geo.Coordinates{}
		}
		return geo.Coordinates{Latitude: point[1], Longitude: point[0]}
	}

	return geo.Coordinates{}
}

type fireFeatureCollection struct {
	Features []struct {
		Geometry   *geometryObj `json:"geometry"`
		Properties struct {
			Firename       string  `json:"firename"`
			Lat            float64 `json:"lat"`
			Lon            float64 `json:"lon"`
			Startdate      string  `json:"startdate"`
			Hectares       float64 `json:"hectares"`
			StageOfControl string  `json:"stage_of_control"`
			Agency         string  `json:"agency"`
			ResponseType   string  `json:"response_type"`
		} `json:"properties"`
	} `json:"features"`
}

func parseFireFeatures(body []byte) ([]regionFire, error) {
	var collection fireFeatureCollection
	if err := json.Unmarshal(body, &collection); err != nil {
		return nil, fmt.Errorf("decode active fires: %w", err)
	}

	fires := make([]regionFire, 0, len(collection.Features))
	for _, f := range collection.Features {
		lat, lon := f.Properties.Lat, f.Properties.Lon
		if lat == 0 && lon == 0 {
			c := f.Geometry.centroid()
			lat, lon = c.Latitude, c.Longitude
		}

		fires = append(fires, regionFire{
			Firename:       f.Properties.Firename,
			Lat:            lat,
			Lon:            lon,
			Startdate:      f.Properties.Startdate,
			Hectares:       f.Properties.Hectares,
			StageOfControl: f.Properties.StageOfControl,
			Agency:         f.Properties.Agency,
			ResponseType:   f.Properties.ResponseType,
		})
	}
	return fires, nil
}

type stationFeatureCollection struct {
	Features []struct {
		Properties struct {
			FWI     float64 `json:"fwi"`
			FFMC    float64 `json:"ffmc"`
			DMC     float64 `json:"dmc"`
			DC      float64 `json:"dc"`
			ISI     float64 `json:"isi"`
			BUI     float64 `json:"bui"`
			DSR     float64 `json:"dsr"`
			RepDate string  `json:"rep_date"`
			Name    string  `json:"name"`
			Agency  string  `json:"agency"`
			Prov    string  `json:"prov"`
			Lat     float64 `json:"lat"`
			Lon     float64 `json:"lon"`
		} `json:"properties"`
	} `json:"features"`
}

// parseFireWeather takes the closest station (first feature) from the
// fire-weather layer.
func parseFireWeather(body []byte) *fireWeather {
	var collection stationFeatureCollection
	if err := json.Unmarshal(body, &collection); err != nil || len(collection.Features) == 0 {
		return nil
	}

	props := collection.Features[0].Properties
	return &fireWeather{
		FWI:     props.FWI,
		FFMC:    props.FFMC,
		DMC:     props.DMC,
		DC:      props.DC,
		ISI:     props.ISI,
		BUI:     props.BUI,
		DSR:     props.DSR,
		RepDate: props.RepDate,
		Station: props.Name,
		Agency:  props.Agency,
		Prov:    props.Prov,
		Lat:     props.Lat,
		Lon:     props.Lon,
	}
}

// classifyFWI maps the Fire Weather Index to a danger level per the
// Canadian classification.
func classifyFWI(fwi float64) *dangerRating {
	switch {
	case fwi >= 30:
		return &dangerRating{Level: "Extreme", Index: 5}
	case fwi >= 17:
		return &dangerRating{Level: "Very High", Index: 4}
	case fwi >= 8:
		return &dangerRating{Level: "High", Index: 3}
	case fwi >= 3:
		return &dangerRating{Level: "Moderate", Index: 2}
	default:
		return &dangerRating{Level: "Low", Index: 1}
	}
}

// isActive matches the stage-of-control values that count as an active
// wildfire ("UC" under control codes, "OC" out of control, or "active").
func isActive(stageOfControl string) bool {
	stage := strings.ToLower(stageOfControl)
	for _, marker := range []string{"uc", "oc", "active"} {
		if strings.Contains(stage, marker) {
			return true
		}
	}
	return false
}

// interpret applies the decision precedence for a region: active fires force
// NoBurn, otherwise the danger rating decides, otherwise absent.
func (p *CwfisProvider) interpret(fires []regionFire, rating *dangerRating, region string) *fire.StatusRecord {
	now := p.clock.Now()
	validTo := now.Add(24 * time.Hour)

	var active int
	for _, f := range fires {
		if isActive(f.StageOfControl) {
			active++
		}
	}

	if active > 0 {
		return &fire.StatusRecord{
			Status:       fire.NoBurn,
			ValidFrom:    now,
			ValidTo:      validTo,
			Jurisdiction: cwfisName,
			Restrictions: []string{
				fmt.Sprintf("%d active wildfire(s) in %s", active, region),
				"All burning prohibited during active fire conditions",
			},
		}
	}

	if rating == nil {
		return nil
	}

	switch rating.Level {
	case "Extreme", "Very High":
		return &fire.StatusRecord{
			Status:       fire.NoBurn,
			ValidFrom:    now,
			ValidTo:      validTo,
			Jurisdiction: cwfisName,
			Restrictions: []string{
				fmt.Sprintf("Fire danger rating: %s", rating.Level),
				"No open burning permitted",
			},
		}
	case "High":
		return &fire.StatusRecord{
			Status:       fire.RestrictedBurn,
			ValidFrom:    now,
			ValidTo:      validTo,
			Jurisdiction: cwfisName,
			Restrictions: []string{
				"Fire danger rating: High",
				"Restricted burning - permits required",
			},
		}
	case "Moderate":
		return &fire.StatusRecord{
			Status:       fire.RestrictedBurn,
			ValidFrom:    now,
			ValidTo:      validTo,
			Jurisdiction: cwfisName,
			Restrictions: []string{
				"Moderate fire danger",
				"Exercise caution when burning",
			},
		}
	case "Low":
		return &fire.StatusRecord{
			Status:       fire.OpenBurn,
			ValidFrom:    now,
			ValidTo:      validTo,
			Jurisdiction: cwfisName,
		}
	}

	return nil
}

// interpretCoordinates is the coordinate-path counterpart: nearby is a
// client-side distance re-check rather than region membership.
func (p *CwfisProvider) interpretCoordinates(fires []regionFire, rating *dangerRating, c geo.Coordinates) *fire.StatusRecord {
	now := p.clock.Now()
	validTo := now.Add(24 * time.Hour)

	closest := -1.0
	for _, f := range fires {
		if !isActive(f.StageOfControl) {
			continue
		}
		d := geo.Distance(c, geo.Coordinates{Latitude: f.Lat, Longitude: f.Lon})
		if d < nearbyFireRadiusKm && (closest < 0 || d < closest) {
			closest = d
		}
	}

	if closest >= 0 {
		return &fire.StatusRecord{
			Status:       fire.NoBurn,
			ValidFrom:    now,
			ValidTo:      validTo,
			Jurisdiction: cwfisName,
			Restrictions: []string{
				fmt.Sprintf("Active wildfire within %.1fkm", closest),
				"No burning permitted due to nearby fire activity",
			},
		}
	}

	return p.interpret(nil, rating, "")
}
