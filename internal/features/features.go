package features

import (
	"time"

	"github.com/kjstillabower/climate-forecast-service/internal/models"
)

// DateLayout is the calendar date format used in prediction records.
const DateLayout = "2006-01-02"

// Build returns the feature vector for a location on the calendar date of t.
// Coordinates are passed through unchecked.
func Build(latitude, longitude float64, t time.Time) models.FeatureVector {
	return models.FeatureVector{
		latitude,
		longitude,
		float64(t.YearDay()),
		float64(t.Year()),
	}
}

// TargetDate returns the calendar day offset days after now, in now's location.
func TargetDate(now time.Time, offset int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+offset, 12, 0, 0, 0, now.Location())
}
