// Package window finds the timestamps a sequence model can forecast.
package window

import (
	"time"

	"solar_forecast/internal/model"
)

// DefaultLength is the number of readings a forecast looks back over.
const DefaultLength = 24

// PredictionTimestamps scans a chronologically sorted series and returns the
// timestamp following every run of length readings whose targets are all
// present. Windows are taken by row position, so a gap in the series does
// not break a window. The following reading's own target may be missing.
func PredictionTimestamps(series []model.Reading, length int) []time.Time {
	if length <= 0 || len(series) <= length {
		return nil
	}

	var out []time.Time
	// missing counts readings without a target inside series[i : i+length].
	missing := 0
	for _, r := range series[:length] {
		if !r.HasTarget() {
			missing++
		}
	}

	for i := 0; i+length < len(series); i++ {
		if missing == 0 {
			out = append(out, series[i+length].Timestamp)
		}
		if !series[i].HasTarget() {
			missing--
		}
		if !series[i+length].HasTarget() {
			missing++
		}
	}
	return out
}
