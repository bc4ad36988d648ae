package predictor

import (
	"math"
	"time"
)

// Names of the cyclical time columns, in the order they follow the raw features.
const (
	FeatureHourSin = "hour_sin"
	FeatureHourCos = "hour_cos"
	FeatureDaySin  = "day_sin"
	FeatureDayCos  = "day_cos"
)

// CyclicalFeatures lists the encoded time columns in model order.
var CyclicalFeatures = []string{FeatureHourSin, FeatureHourCos, FeatureDaySin, FeatureDayCos}

// TimeFeatures is the cyclical encoding of a timestamp.
type TimeFeatures struct {
	HourSin float64
	HourCos float64
	DaySin  float64
	DayCos  float64
}

// EncodeTime converts a timestamp to hour-of-day and day-of-year sin/cos pairs.
// Minutes are whole units; seconds are ignored. The day angle divides by 365
// in every year, so day 366 of a leap year wraps slightly past 2π.
func EncodeTime(t time.Time) TimeFeatures {
	timeOfDay := float64(t.Hour()) + float64(t.Minute())/60.0
	hAngle := 2 * math.Pi * timeOfDay / 24.0
	dAngle := 2 * math.Pi * float64(t.YearDay()) / 365.0
	return TimeFeatures{
		HourSin: math.Sin(hAngle),
		HourCos: math.Cos(hAngle),
		DaySin:  math.Sin(dAngle),
		DayCos:  math.Cos(dAngle),
	}
}

// Values returns the features in CyclicalFeatures order.
func (f TimeFeatures) Values() []float64 {
	return []float64{f.HourSin, f.HourCos, f.DaySin, f.DayCos}
}
