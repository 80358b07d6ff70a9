package fire

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/firewatch/caniburn/internal/geo"
	"github.com/firewatch/caniburn/internal/metrics"
)

// Service resolves burn status through an ordered provider chain with
// static and seasonal fallbacks. Provider order is priority order: the
// first non-absent answer wins and later providers are not queried.
type Service struct {
	providers []Provider
	static    map[string]StatusRecord
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewService creates a Service. Providers are tried in the given order.
func NewService(providers []Provider, logger *slog.Logger) *Service {
	return &Service{
		providers: providers,
		static:    staticStatusTable(),
		clock:     clockwork.NewRealClock(),
		logger:    logger,
	}
}

// StatusForLocation tries each supporting provider in priority order, then
// the static table, then the seasonal heuristic. A provider failure is
// logged and treated as "try next", never aborting the chain. Errors with
// FIRE_STATUS_NOT_FOUND only when nothing answers.
func (s *Service) StatusForLocation(ctx context.Context, loc Location) (*StatusRecord, error) {
	for _, p := range s.providers {
		if !p.SupportsLocation(loc) {
			continue
		}
		record, err := p.StatusForLocation(ctx, loc)
		if err != nil {
			s.logger.Warn("provider failed for location",
				"provider", p.Name(), "region", loc.Region(), "error", err)
			continue
		}
		if record != nil {
			metrics.Resolutions.WithLabelValues(p.Name()).Inc()
			return record, nil
		}
	}

	if record, ok := s.static[loc.Key()]; ok {
		metrics.Resolutions.WithLabelValues("static").Inc()
		return &record, nil
	}

	if record := s.seasonalStatus(loc); record != nil {
		metrics.Resolutions.WithLabelValues("seasonal").Inc()
		return record, nil
	}

	metrics.Resolutions.WithLabelValues("none").Inc()
	return nil, NewStatusNotFound(loc.Region() + ", " + loc.County)
}

// StatusForCoordinates tries each coordinate-capable provider in priority
// order and returns (nil, nil) when none answer. The static table and
// seasonal heuristic are location-keyed and never apply here.
func (s *Service) StatusForCoordinates(ctx context.Context, c geo.Coordinates) (*StatusRecord, error) {
	for _, p := range s.providers {
		if !p.SupportsCoordinates(c) {
			continue
		}
		record, err := p.StatusForCoordinates(ctx, c)
		if err != nil {
			s.logger.Warn("provider failed for coordinates",
				"provider", p.Name(), "lat", c.Latitude, "lon", c.Longitude, "error", err)
			continue
		}
		if record != nil {
			metrics.Resolutions.WithLabelValues(p.Name()).Inc()
			return record, nil
		}
	}

	return nil, nil
}

// ProviderNames lists provider names in priority order.
func (s *Service) ProviderNames() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// CoverageOf returns the coverage of a named provider, empty for unknown
// names.
func (s *Service) CoverageOf(name string) []string {
	for _, p := range s.providers {
		if p.Name() == name {
			return p.Coverage()
		}
	}
	return []string{}
}

// seasonalStatus is the last-resort heuristic for locations with no other
// signal, keyed on country and calendar month. Winter is Dec-Mar, summer
// Jun-Sep; other months have no heuristic. Validity spans the calendar
// month of the query.
func (s *Service) seasonalStatus(loc Location) *StatusRecord {
	now := s.clock.Now().UTC()
	month := now.Month()

	winter := month == time.December || month <= time.March
	summer := month >= time.June && month <= time.September

	from := time.Date(now.Year(), month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Second)

	switch loc.Country {
	case "Canada":
		if winter {
			return &StatusRecord{
				Status:       OpenBurn,
				ValidFrom:    from,
				ValidTo:      to,
				Jurisdiction: "Provincial Fire Authority",
			}
		}
		if summer {
			return &StatusRecord{
				Status:       RestrictedBurn,
				ValidFrom:    from,
				ValidTo:      to,
				Jurisdiction: "Provincial Fire Authority",
				Restrictions: []string{"Seasonal fire restrictions in effect"},
			}
		}

	case "United States":
		if winter {
			return &StatusRecord{
				Status:       RestrictedBurn,
				ValidFrom:    from,
				ValidTo:      to,
				Jurisdiction: "State Fire Authority",
				Restrictions: []string{"Permit may be required"},
			}
		}
		if summer {
			return &StatusRecord{
				Status:       NoBurn,
				ValidFrom:    from,
				ValidTo:      to,
				Jurisdiction: "State Fire Authority",
				Restrictions: []string{"High fire danger period"},
			}
		}
	}

	return nil
}
