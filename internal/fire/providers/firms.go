package providers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/firewatch/caniburn/internal/fire"
	"github.com/firewatch/caniburn/internal/geo"
	"github.com/firewatch/caniburn/internal/metrics"
)

const (
	firmsName         = "NASA FIRMS"
	firmsJurisdiction = "NASA FIRMS Fire Detection"

	// proximityRadiusKm sizes the bounding box around the query point.
	proximityRadiusKm = 10
	// lookbackDays is how far back the detection feed is queried.
	lookbackDays = 7
	// recentWindow bounds which detections count toward classification.
	recentWindow = 72 * time.Hour
)

// firmsCoverage gates coordinate queries to the North America box.
var firmsCoverage = geo.BoundingBox{MinLat: 25, MaxLat: 85, MinLon: -170, MaxLon: -50}

// Detection is a single satellite fire detection. Rows below confidence 50
// are discarded at parse time.
type Detection struct {
	Latitude   float64
	Longitude  float64
	Brightness float64
	Datetime   time.Time
	Satellite  string
	Instrument string
	Confidence float64
}

// FirmsProvider infers burn status from the NASA FIRMS satellite fire
// detection feed. The data is inherently point-based, so location-only
// queries never produce an answer.
type FirmsProvider struct {
	name    string
	baseURL string
	mapKey  string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	cache   *ttlCache[[]Detection]
	clock   clockwork.Clock
	logger  *slog.Logger
}

func NewFirmsProvider(client *http.Client, mapKey string, ttl time.Duration, logger *slog.Logger) *FirmsProvider {
	if mapKey == "" {
		logger.Warn("NASA FIRMS map key not provided; satellite fire detection will be unavailable")
	}
	clock := clockwork.NewRealClock()
	return &FirmsProvider{
		name:    firmsName,
		baseURL: "https://firms.modaps.eosdis.nasa.gov/api/area/csv",
		mapKey:  mapKey,
		client:  client,
		circuit: newBreaker("firms"),
		cache:   newTTLCache[[]Detection](ttl, clock),
		clock:   clock,
		logger:  logger,
	}
}

func (p *FirmsProvider) Name() string {
	return p.name
}

func (p *FirmsProvider) Coverage() []string {
	return []string{"United States", "Canada", "Global"}
}

func (p *FirmsProvider) SupportsLocation(loc fire.Location) bool {
	return loc.Country == "United States" || loc.Country == "Canada"
}

func (p *FirmsProvider) SupportsCoordinates(c geo.Coordinates) bool {
	return firmsCoverage.Contains(c)
}

// StatusForLocation always answers absent: the feed reports detection
// points, not regulatory status for a region.
func (p *FirmsProvider) StatusForLocation(_ context.Context, _ fire.Location) (*fire.StatusRecord, error) {
	return nil, nil
}

func (p *FirmsProvider) StatusForCoordinates(ctx context.Context, c geo.Coordinates) (*fire.StatusRecord, error) {
	if p.mapKey == "" {
		return nil, nil
	}

	detections, err := p.nearbyDetections(ctx, c)
	if err != nil {
		return nil, fire.NewExternalServiceFailure(p.name, err)
	}
	return p.classify(detections, c), nil
}

func (p *FirmsProvider) nearbyDetections(ctx context.Context, c geo.Coordinates) ([]Detection, error) {
	cacheKey := fmt.Sprintf("%.3f,%.3f", c.Latitude, c.Longitude)
	if cached, ok := p.cache.get(cacheKey); ok {
		metrics.CacheEvents.WithLabelValues(p.name, "hit").Inc()
		return cached, nil
	}
	metrics.CacheEvents.WithLabelValues(p.name, "miss").Inc()

	box := geo.BoxAround(c, proximityRadiusKm)
	area := fmt.Sprintf("%f,%f,%f,%f", box.MinLon, box.MinLat, box.MaxLon, box.MaxLat)
	url := fmt.Sprintf("%s/%s/VIIRS_SNPP_NRT/%s/%d", p.baseURL, p.mapKey, area, lookbackDays)

	body, err := fetchBody(ctx, p.client, p.circuit, url)
	if err != nil {
		if isRateLimited(err) {
			metrics.ProviderRequests.WithLabelValues(p.name, "rate_limited").Inc()
			p.logger.Warn("NASA FIRMS rate limit exceeded")
		} else {
			metrics.ProviderRequests.WithLabelValues(p.name, "error").Inc()
		}
		return nil, err
	}
	metrics.ProviderRequests.WithLabelValues(p.name, "ok").Inc()

	detections := parseDetections(body)
	p.cache.put(cacheKey, detections)
	return detections, nil
}

// parseDetections reads the delimited detection feed. Column order:
// lat, lon, brightness, scan, track, acq_date, acq_time (HHMM), satellite,
// instrument, confidence, ... Malformed rows are skipped individually.
func parseDetections(body []byte) []Detection {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil
	}

	var detections []Detection
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		// A syntax fault (stray quote etc.) spoils one row, not the feed.
		if err != nil {
			continue
		}
		if len(row) < len(header) || len(row) < 10 {
			continue
		}

		lat, latErr := strconv.ParseFloat(row[0], 64)
		lon, lonErr := strconv.ParseFloat(row[1], 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		ts, err := parseAcquisition(row[5], row[6])
		if err != nil {
			continue
		}

		brightness, _ := strconv.ParseFloat(row[2], 64)
		confidence, _ := strconv.ParseFloat(row[9], 64)
		if confidence < 50 {
			continue
		}

		detections = append(detections, Detection{
			Latitude:   lat,
			Longitude:  lon,
			Brightness: brightness,
			Datetime:   ts,
			Satellite:  row[7],
			Instrument: row[8],
			Confidence: confidence,
		})
	}
	return detections
}

// parseAcquisition combines an acquisition date (YYYY-MM-DD) with an HHMM
// time field. Anything other than a 4-digit time degrades to midnight.
func parseAcquisition(date, hhmm string) (time.Time, error) {
	formatted := "00:00:00"
	if len(hhmm) == 4 {
		formatted = hhmm[:2] + ":" + hhmm[2:] + ":00"
	}
	return time.Parse("2006-01-02T15:04:05Z07:00", date+"T"+formatted+"Z")
}

// classify turns the detection set into a status. Any detection within 5 km
// of the query point, or three or more high-confidence detections, forces
// NoBurn; two or more recent detections yield RestrictedBurn.
func (p *FirmsProvider) classify(detections []Detection, c geo.Coordinates) *fire.StatusRecord {
	if len(detections) == 0 {
		return nil
	}

	now := p.clock.Now()

	var recent []Detection
	for _, d := range detections {
		if now.Sub(d.Datetime) < recentWindow {
			recent = append(recent, d)
		}
	}

	var highConfidence, nearby int
	for _, d := range recent {
		if d.Confidence >= 80 {
			highConfidence++
		}
		if geo.Distance(c, geo.Coordinates{Latitude: d.Latitude, Longitude: d.Longitude}) < 5 {
			nearby++
		}
	}

	validTo := now.Add(24 * time.Hour)

	if nearby > 0 || highConfidence >= 3 {
		return &fire.StatusRecord{
			Status:       fire.NoBurn,
			ValidFrom:    now,
			ValidTo:      validTo,
			Jurisdiction: firmsJurisdiction,
			Restrictions: []string{
				"Active fire detected in area",
				"No burning recommended due to fire activity",
			},
		}
	}

	if len(recent) >= 2 {
		return &fire.StatusRecord{
			Status:       fire.RestrictedBurn,
			ValidFrom:    now,
			ValidTo:      validTo,
			Jurisdiction: firmsJurisdiction,
			Restrictions: []string{
				"Recent fire activity detected",
				"Exercise extreme caution",
			},
		}
	}

	return nil
}
