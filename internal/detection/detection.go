// Package detection interprets the opaque payload returned by the
// external image-detection service. The service itself is out of scope;
// this package only derives a severity label when the payload does not
// carry one.
package detection

import "github.com/civicwatch/hazard-server/internal/models"

// Severity bands for the detection's relative bounding-box diagonal.
// A hazard filling more of the frame is treated as more severe.
const (
	mediumBand = 0.20
	highBand   = 0.50
)

// SeverityOf returns the detection's severity, deriving it from the
// relative size when the detector supplied no label.
func SeverityOf(d *models.DetectionResult) models.Severity {
	if d == nil {
		return ""
	}
	if d.Severity != "" {
		return d.Severity
	}
	return SeverityFromRelativeSize(d.RelativeSize)
}

// SeverityFromRelativeSize maps a relative bounding-box diagonal to a
// severity band.
func SeverityFromRelativeSize(relative float64) models.Severity {
	switch {
	case relative < mediumBand:
		return models.SeverityLow
	case relative < highBand:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}
