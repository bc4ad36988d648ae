package window

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar_forecast/internal/model"
)

var startTime = time.Date(2020, 5, 15, 0, 0, 0, 0, time.UTC)

const interval = 15 * time.Minute

// makeSeries builds a series where the readings at the given offsets have no target.
func makeSeries(n int, missing ...int) []model.Reading {
	gaps := make(map[int]bool, len(missing))
	for _, m := range missing {
		gaps[m] = true
	}
	series := make([]model.Reading, n)
	for i := range series {
		r := model.NewReading(model.Plant1, 1, startTime.Add(time.Duration(i)*interval))
		if !gaps[i] {
			r.ACPower = float64(i)
		}
		series[i] = r
	}
	return series
}

// bruteForce mirrors the definition directly.
func bruteForce(series []model.Reading, length int) []time.Time {
	var out []time.Time
	for i := 0; i < len(series)-length; i++ {
		ok := true
		for _, r := range series[i : i+length] {
			if !r.HasTarget() {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, series[i+length].Timestamp)
		}
	}
	return out
}

func TestPredictionTimestamps_ShortSeries(t *testing.T) {
	assert.Empty(t, PredictionTimestamps(nil, DefaultLength))
	assert.Empty(t, PredictionTimestamps(makeSeries(10), DefaultLength))
	// Exactly L rows leave no following reading to predict.
	assert.Empty(t, PredictionTimestamps(makeSeries(24), DefaultLength))
}

func TestPredictionTimestamps_Complete(t *testing.T) {
	series := makeSeries(30)
	got := PredictionTimestamps(series, DefaultLength)

	require.Len(t, got, 6)
	assert.Equal(t, series[24].Timestamp, got[0])
	assert.Equal(t, series[29].Timestamp, got[5])
}

func TestPredictionTimestamps_MissingTarget(t *testing.T) {
	series := makeSeries(60, 30)
	got := PredictionTimestamps(series, DefaultLength)

	// Windows starting at offsets 7..30 contain row 30.
	assert.Len(t, got, 36-24)
	for _, ts := range got {
		idx := int(ts.Sub(startTime) / interval)
		assert.True(t, idx <= 30 || idx >= 55, "index %d should not be predictable", idx)
	}
	assert.Contains(t, got, series[30].Timestamp, "the following reading may itself be missing")
}

func TestPredictionTimestamps_MatchesBruteForce(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		missing []int
		length  int
	}{
		{"none missing", 100, nil, 24},
		{"first missing", 100, []int{0}, 24},
		{"last missing", 100, []int{99}, 24},
		{"scattered", 200, []int{3, 40, 41, 90, 150, 199}, 24},
		{"short window", 20, []int{5, 12}, 3},
		{"all missing", 50, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49}, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := makeSeries(tt.n, tt.missing...)
			assert.Equal(t, bruteForce(series, tt.length), PredictionTimestamps(series, tt.length))
		})
	}
}

func TestPredictionTimestamps_RowAdjacency(t *testing.T) {
	// Drop rows 10..19 entirely: windows still span the gap by position.
	full := makeSeries(50)
	series := append(append([]model.Reading{}, full[:10]...), full[20:]...)

	got := PredictionTimestamps(series, DefaultLength)
	require.Len(t, got, len(series)-24)
	assert.Equal(t, series[24].Timestamp, got[0])
	assert.Equal(t, full[34].Timestamp, got[0])
}

func TestPredictionTimestamps_StrictlyAscending(t *testing.T) {
	got := PredictionTimestamps(makeSeries(300, 50, 120, 121), DefaultLength)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].After(got[i-1]))
	}
}

func TestPredictionTimestamps_NaNIsMissing(t *testing.T) {
	series := makeSeries(26)
	series[0].ACPower = math.NaN()
	got := PredictionTimestamps(series, DefaultLength)
	require.Len(t, got, 1)
	assert.Equal(t, series[25].Timestamp, got[0])
}

func TestPredictionTimestamps_InvalidLength(t *testing.T) {
	assert.Empty(t, PredictionTimestamps(makeSeries(30), 0))
	assert.Empty(t, PredictionTimestamps(makeSeries(30), -1))
}
