package fire

import (
	"time"

	"github.com/firewatch/caniburn/internal/geo"
)

// BurnStatus classifies whether open burning is permitted. Lower values are
// more restrictive; when signals disagree, the more restrictive one wins.
type BurnStatus int

const (
	NoBurn BurnStatus = iota
	RestrictedBurn
	OpenBurn
)

func (s BurnStatus) String() string {
	switch s {
	case NoBurn:
		return "no_burn"
	case RestrictedBurn:
		return "restricted_burn"
	case OpenBurn:
		return "open_burn"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status as its string name.
func (s BurnStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Location is a resolved administrative region. Province and State are
// near-duplicates kept for regional naming differences (Canadian provinces
// vs US states); never both empty for a resolved location.
type Location struct {
	Province string `json:"province"`
	State    string `json:"state"`
	County   string `json:"county"`
	Country  string `json:"country"`
}

// Region returns the province-or-state name used to key regional lookups.
func (l Location) Region() string {
	if l.Province != "" {
		return l.Province
	}
	return l.State
}

// Key returns the "{region},{county}" key used by the static status table.
func (l Location) Key() string {
	return l.Region() + "," + l.County
}

// StatusRecord is a burn status with its validity window and issuing
// authority. Immutable once returned by a provider or fallback source.
type StatusRecord struct {
	Status       BurnStatus `json:"status"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      time.Time  `json:"valid_to"`
	Jurisdiction string     `json:"jurisdiction"`
	Restrictions []string   `json:"restrictions,omitempty"`
}

// ActiveAt reports whether t falls inside the record's validity window.
func (r StatusRecord) ActiveAt(t time.Time) bool {
	return !t.Before(r.ValidFrom) && !t.After(r.ValidTo)
}

// WatchResult is the orchestrator's answer: a status record merged with the
// resolved location and the coordinates that were asked about. Built fresh
// per request.
type WatchResult struct {
	Status       BurnStatus      `json:"status"`
	ValidFrom    time.Time       `json:"valid_from"`
	ValidTo      time.Time       `json:"valid_to"`
	Location     Location        `json:"location"`
	Coordinates  geo.Coordinates `json:"coordinates"`
	Jurisdiction string          `json:"jurisdiction"`
	Restrictions []string        `json:"restrictions,omitempty"`
}
