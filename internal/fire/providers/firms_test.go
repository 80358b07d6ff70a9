package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch/caniburn/internal/fire"
	"github.com/firewatch/caniburn/internal/geo"
)

const firmsHeader = "latitude,longitude,bright_ti4,scan,track,acq_date,acq_time,satellite,instrument,confidence\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestFirms builds a provider pointed at a test server, with a frozen
// clock shared by classification and cache.
func newTestFirms(t *testing.T, serverURL string, clock clockwork.Clock) *FirmsProvider {
	t.Helper()
	p := NewFirmsProvider(&http.Client{Timeout: 5 * time.Second}, "test-key", 30*time.Minute, discardLogger())
	p.baseURL = serverURL
	p.clock = clock
	p.cache = newTTLCache[[]Detection](30*time.Minute, clock)
	return p
}

func detectionRow(lat, lon float64, at time.Time, confidence int) string {
	return fmt.Sprintf("%f,%f,330.5,0.39,0.36,%s,%s,N,VIIRS,%d\n",
		lat, lon, at.UTC().Format("2006-01-02"), at.UTC().Format("1504"), confidence)
}

func TestFirms_Identity(t *testing.T) {
	p := NewFirmsProvider(http.DefaultClient, "", 0, discardLogger())

	assert.Equal(t, "NASA FIRMS", p.Name())
	assert.Equal(t, []string{"United States", "Canada", "Global"}, p.Coverage())

	assert.True(t, p.SupportsLocation(fire.Location{Country: "Canada"}))
	assert.True(t, p.SupportsLocation(fire.Location{Country: "United States"}))
	assert.False(t, p.SupportsLocation(fire.Location{Country: "France"}))

	// North America bounding box gate.
	assert.True(t, p.SupportsCoordinates(geo.Coordinates{Latitude: 50, Longitude: -100}))
	assert.False(t, p.SupportsCoordinates(geo.Coordinates{Latitude: 50, Longitude: 10}))
	assert.False(t, p.SupportsCoordinates(geo.Coordinates{Latitude: 10, Longitude: -100}))
}

func TestFirms_LocationQueriesAlwaysAbsent(t *testing.T) {
	p := NewFirmsProvider(http.DefaultClient, "test-key", 0, discardLogger())

	record, err := p.StatusForLocation(context.Background(), fire.Location{Country: "Canada"})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFirms_NoMapKeyNoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p := NewFirmsProvider(srv.Client(), "", 0, discardLogger())
	p.baseURL = srv.URL

	record, err := p.StatusForCoordinates(context.Background(), geo.Coordinates{Latitude: 50, Longitude: -100})
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Zero(t, calls.Load())
}

func TestFirms_NearbyDetectionForcesNoBurn(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC))
	query := geo.Coordinates{Latitude: 50, Longitude: -100}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One detection ~1 km from the query point, 6 hours old.
		fmt.Fprint(w, firmsHeader+detectionRow(50.009, -100, clock.Now().Add(-6*time.Hour), 60))
	}))
	defer srv.Close()

	p := newTestFirms(t, srv.URL, clock)

	record, err := p.StatusForCoordinates(context.Background(), query)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, fire.NoBurn, record.Status)
	assert.Equal(t, "NASA FIRMS Fire Detection", record.Jurisdiction)
	assert.Equal(t, clock.Now(), record.ValidFrom)
	assert.Equal(t, clock.Now().Add(24*time.Hour), record.ValidTo)
	assert.Contains(t, record.Restrictions, "Active fire detected in area")
}

func TestFirms_ThreeHighConfidenceForcesNoBurn(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC))
	query := geo.Coordinates{Latitude: 50, Longitude: -100}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Three high-confidence detections, all farther than 5 km.
		body := firmsHeader
		for i := 0; i < 3; i++ {
			body += detectionRow(50.08, -100.0-float64(i)*0.01, clock.Now().Add(-12*time.Hour), 85)
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	p := newTestFirms(t, srv.URL, clock)

	record, err := p.StatusForCoordinates(context.Background(), query)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, fire.NoBurn, record.Status)
}

func TestFirms_TwoRecentDetectionsRestrict(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC))
	query := geo.Coordinates{Latitude: 50, Longitude: -100}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := firmsHeader +
			detectionRow(50.08, -100.05, clock.Now().Add(-10*time.Hour), 60) +
			detectionRow(50.07, -100.06, clock.Now().Add(-20*time.Hour), 65)
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	p := newTestFirms(t, srv.URL, clock)

	record, err := p.StatusForCoordinates(context.Background(), query)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, fire.RestrictedBurn, record.Status)
	assert.Contains(t, record.Restrictions, "Recent fire activity detected")
}

func TestFirms_StaleDetectionsAbsent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC))
	query := geo.Coordinates{Latitude: 50, Longitude: -100}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Plenty of detections, but all outside the 72 hour window.
		body := firmsHeader
		for i := 0; i < 4; i++ {
			body += detectionRow(50.009, -100, clock.Now().Add(-96*time.Hour), 90)
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	p := newTestFirms(t, srv.URL, clock)

	record, err := p.StatusForCoordinates(context.Background(), query)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFirms_RateLimitSurfacesExternalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newTestFirms(t, srv.URL, clockwork.NewFakeClock())

	_, err := p.StatusForCoordinates(context.Background(), geo.Coordinates{Latitude: 50, Longitude: -100})
	require.Error(t, err)
	assert.Equal(t, fire.CodeExternalService, fire.CodeOf(err))
}

func TestFirms_CacheSingleFetchWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC))
	query := geo.Coordinates{Latitude: 50, Longitude: -100}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, firmsHeader+detectionRow(50.009, -100, clock.Now().Add(-6*time.Hour), 60))
	}))
	defer srv.Close()

	p := newTestFirms(t, srv.URL, clock)

	_, err := p.StatusForCoordinates(context.Background(), query)
	require.NoError(t, err)
	_, err = p.StatusForCoordinates(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second call within TTL should hit the cache")

	clock.Advance(31 * time.Minute)
	_, err = p.StatusForCoordinates(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "expired entry should trigger a refetch")
}

func TestParseDetections_FiltersAndFaultTolerance(t *testing.T) {
	body := firmsHeader +
		"50.1,-100.1,330.5,0.39,0.36,2025-08-14,1030,N,VIIRS,90\n" + // kept
		"50.2,-100.2,330.5,0.39,0.36,2025-08-14,1030,N,VIIRS,30\n" + // low confidence
		"not-a-number,-100.3,330.5,0.39,0.36,2025-08-14,1030,N,VIIRS,90\n" + // bad latitude
		"50.4,-100.4,330.5,0.39,0.36,bad-date,1030,N,VIIRS,90\n" + // bad date
		"50.5,-100.5,330.5\n" + // short row
		"50.7,-100\"7,330.5,0.39,0.36,2025-08-14,1030,N,VIIRS,90\n" + // stray quote breaks the row, not the feed
		"50.6,-100.6,330.5,0.39,0.36,2025-08-14,9,N,VIIRS,70\n" // odd time falls back to midnight

	detections := parseDetections([]byte(body))

	require.Len(t, detections, 2)
	assert.Equal(t, 50.1, detections[0].Latitude)
	assert.Equal(t, float64(90), detections[0].Confidence)
	assert.Equal(t, time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC), detections[0].Datetime)

	assert.Equal(t, 50.6, detections[1].Latitude)
	assert.Equal(t, time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC), detections[1].Datetime)
}

func TestParseDetections_EmptyFeed(t *testing.T) {
	assert.Nil(t, parseDetections([]byte(firmsHeader)))
	assert.Nil(t, parseDetections(nil))
}
