// Package geo provides the distance math used for radius-based
// notification targeting and geofenced report queries.
//
// Distances use a planar approximation: one degree of latitude is taken
// as 111 km and one degree of longitude as 111 km scaled by cos(lat).
// That is accurate at neighborhood scale, which is all the 5 km
// notification radius needs. It is NOT great-circle distance and should
// not be used at province or country scale.
package geo

import (
	"math"

	"github.com/civicwatch/hazard-server/internal/models"
)

// kmPerDegree is the approximate length of one degree of latitude.
const kmPerDegree = 111.0

// DistanceKm returns the approximate distance between two coordinates
// in kilometers.
func DistanceKm(a, b models.Location) float64 {
	dLat := (b.Latitude - a.Latitude) * kmPerDegree
	midLat := (a.Latitude + b.Latitude) / 2 * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * kmPerDegree * math.Cos(midLat)
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// Within reports whether a and b are at most radiusKm apart.
func Within(a, b models.Location, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}
