package fire

import (
	"context"

	"github.com/firewatch/caniburn/internal/geo"
)

// Provider abstracts a fire data source (satellite detection feed,
// regulatory/weather-index feed). Status methods return (nil, nil) when the
// query is well-formed but yields no usable signal; a non-nil error means
// genuine I/O failure and the caller decides whether to continue the chain.
type Provider interface {
	Name() string

	// Coverage lists covered regions, for introspection only.
	Coverage() []string

	SupportsLocation(loc Location) bool
	SupportsCoordinates(c geo.Coordinates) bool

	StatusForLocation(ctx context.Context, loc Location) (*StatusRecord, error)
	StatusForCoordinates(ctx context.Context, c geo.Coordinates) (*StatusRecord, error)
}

// Geocoder resolves coordinates to an administrative location.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c geo.Coordinates) (Location, error)
}
