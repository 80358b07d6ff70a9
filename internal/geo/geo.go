package geo

import (
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Validate checks latitude and longitude ranges. NaN fails every numeric
// comparison, so non-finite values are rejected by the same tags as
// out-of-range ones.
func (c Coordinates) Validate() error {
	return validate.Struct(c)
}

// earthRadiusKm is the mean Earth radius used for haversine distances.
const earthRadiusKm = 6371

// Distance returns the haversine distance between two coordinates in km.
func Distance(a, b Coordinates) float64 {
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*math.Pi/180)*math.Cos(b.Latitude*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBox is a rectangular lat/lon region.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Contains reports whether c lies inside the box (inclusive).
func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat &&
		c.Longitude >= b.MinLon && c.Longitude <= b.MaxLon
}

// BoxAround builds a bounding box of radiusKm around center. One degree of
// latitude is ~111 km; the longitude offset shrinks with cos(latitude).
func BoxAround(center Coordinates, radiusKm float64) BoundingBox {
	latOffset := radiusKm / 111
	lonOffset := radiusKm / (111 * math.Cos(center.Latitude*math.Pi/180))

	return BoundingBox{
		MinLat: center.Latitude - latOffset,
		MinLon: center.Longitude - lonOffset,
		MaxLat: center.Latitude + latOffset,
		MaxLon: center.Longitude + lonOffset,
	}
}
