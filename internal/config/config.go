package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/firewatch/caniburn/internal/geo"
)

type AppConfig struct {
	// FirmsMapKey authenticates against the satellite detection feed.
	// Without it the satellite provider answers absent.
	FirmsMapKey string

	// HTTPTimeout bounds every outbound collaborator call.
	HTTPTimeout time.Duration

	// CacheTTL is how long provider payloads stay fresh.
	CacheTTL time.Duration

	// WarmCoordinates are periodically re-queried to keep provider caches
	// hot; WarmInterval controls how often.
	WarmCoordinates []geo.Coordinates
	WarmInterval    time.Duration

	Port        string
	MetricsAddr string

	Env       string
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.FirmsMapKey = os.Getenv("FIRMS_MAP_KEY")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	ttlStr := getenvDefault("CACHE_TTL", "30m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = ttl

	intervalStr := getenvDefault("WARM_INTERVAL", "15m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid WARM_INTERVAL: %w", err)
	}
	cfg.WarmInterval = interval

	coords, err := loadWarmCoordinates()
	if err != nil {
		return nil, err
	}
	cfg.WarmCoordinates = coords

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.MetricsAddr = getenvDefault("METRICS_ADDR", ":9090")
	cfg.Env = getenvDefault("APP_ENV", "development")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "text")

	return cfg, nil
}

// loadWarmCoordinates parses WARM_COORDINATES, a comma-separated list of
// "lat:lon" pairs. Empty means no cache warming.
func loadWarmCoordinates() ([]geo.Coordinates, error) {
	raw := os.Getenv("WARM_COORDINATES")
	if raw == "" {
		return nil, nil
	}

	var coords []geo.Coordinates
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid WARM_COORDINATES entry %q; expected lat:lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in WARM_COORDINATES entry %q", pair)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in WARM_COORDINATES entry %q", pair)
		}

		c := geo.Coordinates{Latitude: lat, Longitude: lon}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("out-of-range WARM_COORDINATES entry %q", pair)
		}
		coords = append(coords, c)
	}

	return coords, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
