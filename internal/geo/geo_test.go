package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicwatch/hazard-server/internal/models"
)

func loc(lat, lng float64) models.Location {
	return models.Location{Latitude: lat, Longitude: lng}
}

func TestDistanceKm(t *testing.T) {
	report := loc(40.70, -74.00)

	// One hundredth of a degree of latitude is ~1.11 km.
	assert.InDelta(t, 1.11, DistanceKm(report, loc(40.71, -74.00)), 0.05)

	// Two tenths of a degree is ~22 km.
	assert.InDelta(t, 22.2, DistanceKm(report, loc(40.90, -74.00)), 0.5)

	// Longitude shrinks with cos(lat) at ~40.7°N.
	assert.InDelta(t, 0.84, DistanceKm(report, loc(40.70, -74.01)), 0.05)

	assert.Zero(t, DistanceKm(report, report))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a, b := loc(40.70, -74.00), loc(40.75, -73.95)
	assert.Equal(t, DistanceKm(a, b), DistanceKm(b, a))
}

func TestWithin(t *testing.T) {
	report := loc(40.70, -74.00)

	assert.True(t, Within(report, loc(40.71, -74.00), 5))  // ~1.1 km
	assert.False(t, Within(report, loc(40.90, -74.00), 5)) // ~22 km
	assert.True(t, Within(report, report, 0))
}
