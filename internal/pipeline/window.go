package pipeline

import (
	"time"

	"stationcast/internal/models"
)

// Window returns the range covering the last hours before now, open ended.
// A non-positive hours value selects the full history.
func Window(hours float64, now time.Time) models.TimeRange {
	if hours <= 0 {
		return models.TimeRange{}
	}
	start := now.UnixMilli() - int64(hours*float64(time.Hour/time.Millisecond))
	return models.TimeRange{Start: &start}
}
