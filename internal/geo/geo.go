package geo

import "math"

const earthRadiusMeters = 6371000

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceMeters returns the great-circle distance between two points using
// the haversine formula. Accurate to well under 0.5% at classroom scale.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// WithinRadius reports whether p falls inside the fence. The boundary is
// inclusive: a point exactly radiusMeters away counts as within.
func WithinRadius(center, p Point, radiusMeters float64) bool {
	return DistanceMeters(center, p) <= radiusMeters
}
