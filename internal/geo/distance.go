// Package geo provides coordinate math for event discovery: great-circle
// distance, the proximity score used by ranking, and coarse geohash cells.
package geo

import "math"

// earthDiameterKm is twice the mean Earth radius (6371 km).
const earthDiameterKm = 12742.0

// DefaultProximityRadiusKm is the distance at which DistanceScore reaches 0.
const DefaultProximityRadiusKm = 50.0

// Coordinate is a point on the globe in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and within [-90,90] x [-180,180].
// Ranking never calls it; input validation happens at the API boundary.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceKm returns the great-circle distance between a and b in kilometres
// using the Haversine formula.
func DistanceKm(a, b Coordinate) float64 {
	const rad = math.Pi / 180

	h := 0.5 - math.Cos((b.Lat-a.Lat)*rad)/2 +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*(1-math.Cos((b.Lng-a.Lng)*rad))/2

	// Rounding can push h a hair outside [0,1] for identical or antipodal points.
	h = math.Max(0, math.Min(1, h))

	return earthDiameterKm * math.Asin(math.Sqrt(h))
}

// DistanceScore converts the distance between an event and the caller into a
// linear proximity score: 1 when co-located, 0 at radiusKm, negative beyond.
// The result is deliberately not clamped so far events are penalised.
// A non-positive radius falls back to DefaultProximityRadiusKm.
func DistanceScore(eventLoc, currLoc Coordinate, radiusKm float64) float64 {
	if radiusKm <= 0 {
		radiusKm = DefaultProximityRadiusKm
	}
	return 1 - DistanceKm(eventLoc, currLoc)/radiusKm
}
