package fire

import (
	"context"

	"github.com/firewatch/caniburn/internal/geo"
)

// WatchService is the top-level entry point: it validates input, resolves
// the fire status (coordinate path preferred, location path as fallback)
// and merges it with the geocoded location.
type WatchService struct {
	geocoder Geocoder
	status   *Service
}

func NewWatchService(geocoder Geocoder, status *Service) *WatchService {
	return &WatchService{
		geocoder: geocoder,
		status:   status,
	}
}

// Evaluate answers whether burning is permitted at the given coordinates.
// Coordinates are validated before any network activity. The location is
// resolved once and reused for both the status fallback and the response.
func (w *WatchService) Evaluate(ctx context.Context, c geo.Coordinates) (*WatchResult, error) {
	if err := c.Validate(); err != nil {
		return nil, NewInvalidCoordinates(c.Latitude, c.Longitude)
	}

	// Coordinate-based lookup first; satellite data is more precise than
	// region-level status.
	record, err := w.status.StatusForCoordinates(ctx, c)
	if err != nil {
		return nil, err
	}

	loc, err := w.geocoder.ReverseGeocode(ctx, c)
	if err != nil {
		return nil, err
	}

	if record == nil {
		record, err = w.status.StatusForLocation(ctx, loc)
		if err != nil {
			return nil, err
		}
	}

	return &WatchResult{
		Status:       record.Status,
		ValidFrom:    record.ValidFrom,
		ValidTo:      record.ValidTo,
		Location:     loc,
		Coordinates:  c,
		Jurisdiction: record.Jurisdiction,
		Restrictions: record.Restrictions,
	}, nil
}
