package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "caniburn"

// Provider metrics
var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound provider fetches by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: ok, rate_limited, error
	)

	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cache_events_total",
			Help:      "Provider cache lookups by provider and result",
		},
		[]string{"provider", "result"}, // result: hit, miss
	)
)

// Lookup metrics
var (
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_resolutions_total",
			Help:      "Fire status answers by originating source",
		},
		[]string{"source"}, // provider name, "static", "seasonal", "none"
	)

	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding calls by status",
		},
		[]string{"status"}, // ok, not_found, error
	)
)
