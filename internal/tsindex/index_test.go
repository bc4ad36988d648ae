package tsindex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar_forecast/internal/model"
)

var (
	startTime   = time.Date(2020, 5, 15, 0, 0, 0, 0, time.UTC)
	step        = 15 * time.Minute
	generatedAt = time.Date(2024, 1, 2, 3, 4, 5, 678900000, time.UTC)
)

func timestamps(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * step)
	}
	return out
}

func TestAssemble(t *testing.T) {
	span := &model.TimeRange{Start: startTime, End: startTime.Add(48 * step)}
	idx := Assemble(model.Plant1, 24, generatedAt, []InverterTimestamps{
		{InverterID: 1, Timestamps: timestamps(startTime.Add(24*step), 3)},
		{InverterID: 2, Timestamps: nil},
	}, span)

	assert.Equal(t, 1, idx.Plant)
	assert.Equal(t, "2024-01-02T03:04:05.678900", idx.GeneratedAt)
	assert.Equal(t, 24, idx.SequenceLength)

	e1, ok := idx.Entry(1)
	require.True(t, ok)
	assert.Equal(t, 3, e1.PredictionCount)
	assert.Equal(t, []string{"2020-05-15T06:00:00", "2020-05-15T06:15:00", "2020-05-15T06:30:00"}, e1.Timestamps)
	require.NotNil(t, e1.FirstPrediction)
	assert.Equal(t, "2020-05-15T06:00:00", *e1.FirstPrediction)
	assert.Equal(t, "2020-05-15T06:30:00", *e1.LastPrediction)

	e2, ok := idx.Entry(2)
	require.True(t, ok)
	assert.Equal(t, 0, e2.PredictionCount)
	assert.Nil(t, e2.FirstPrediction)
	assert.Nil(t, e2.LastPrediction)
	assert.NotNil(t, e2.Timestamps)

	assert.Equal(t, 2, idx.Summary.TotalInverters)
	assert.Equal(t, 3, idx.Summary.TotalPredictionTimestamps)
	assert.Equal(t, OneDecimal(1.5), idx.Summary.AveragePerInverter)
	assert.Equal(t, "2020-05-15T00:00:00", *idx.Summary.DateRange.Start)
	assert.Equal(t, "2020-05-15T12:00:00", *idx.Summary.DateRange.End)
	require.NoError(t, idx.Validate())
}

func TestAssemble_ZeroInverters(t *testing.T) {
	idx := Assemble(model.Plant2, 24, generatedAt, nil, nil)

	assert.Equal(t, 0, idx.Summary.TotalInverters)
	assert.Equal(t, 0, idx.Summary.TotalPredictionTimestamps)
	assert.Equal(t, OneDecimal(0), idx.Summary.AveragePerInverter)
	assert.Nil(t, idx.Summary.DateRange.Start)

	data, err := json.Marshal(idx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"average_per_inverter":0.0`)
	assert.Contains(t, string(data), `"date_range":{"start":null,"end":null}`)
	assert.Contains(t, string(data), `"inverters":{}`)
}

func TestAverage(t *testing.T) {
	tests := []struct {
		total, n int
		want     OneDecimal
	}{
		{0, 0, 0},
		{10, 0, 10},
		{15, 4, 3.8},
		{7, 3, 2.3},
		{1, 20, 0.1},
		{5, 2, 2.5},
		{1000, 22, 45.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Average(tt.total, tt.n), "total=%d n=%d", tt.total, tt.n)
	}
}

func TestOneDecimal_JSON(t *testing.T) {
	tests := []struct {
		v    OneDecimal
		want string
	}{
		{0, "0.0"},
		{3, "3.0"},
		{2.5, "2.5"},
		{1234.5, "1234.5"},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(data))

		var back OneDecimal
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, tt.v, back)
	}
}

func TestIndex_Allows(t *testing.T) {
	idx := Assemble(model.Plant1, 24, generatedAt, []InverterTimestamps{
		{InverterID: 4, Timestamps: timestamps(startTime, 10)},
	}, nil)

	assert.True(t, idx.Allows(4, "2020-05-15T00:00:00"))
	assert.True(t, idx.Allows(4, "2020-05-15T02:15:00"))
	assert.False(t, idx.Allows(4, "2020-05-15T02:30:00"))
	assert.False(t, idx.Allows(4, "2020-05-15T00:05:00"))
	assert.False(t, idx.Allows(4, "2020-05-15 00:00:00"), "only canonical form matches")
	assert.False(t, idx.Allows(5, "2020-05-15T00:00:00"))
}

func TestIndex_InverterIDsAndTop(t *testing.T) {
	idx := Assemble(model.Plant1, 24, generatedAt, []InverterTimestamps{
		{InverterID: 10, Timestamps: timestamps(startTime, 2)},
		{InverterID: 2, Timestamps: timestamps(startTime, 5)},
		{InverterID: 3, Timestamps: timestamps(startTime, 5)},
		{InverterID: 1, Timestamps: timestamps(startTime, 1)},
	}, nil)

	assert.Equal(t, []int{1, 2, 3, 10}, idx.InverterIDs())

	top := idx.TopInverters(3)
	require.Len(t, top, 3)
	assert.Equal(t, 2, top[0].InverterID)
	assert.Equal(t, 3, top[1].InverterID)
	assert.Equal(t, 10, top[2].InverterID)

	assert.Len(t, idx.TopInverters(10), 4)
}

func TestIndex_Validate(t *testing.T) {
	valid := func() *Index {
		return Assemble(model.Plant1, 24, generatedAt, []InverterTimestamps{
			{InverterID: 1, Timestamps: timestamps(startTime, 3)},
		}, nil)
	}

	tests := []struct {
		name   string
		mutate func(*Index)
		want   string
	}{
		{"bad plant", func(i *Index) { i.Plant = 9 }, "unknown plant"},
		{"bad length", func(i *Index) { i.SequenceLength = 0 }, "sequence_length"},
		{"count mismatch", func(i *Index) { i.Inverters["1"].PredictionCount = 7 }, "prediction_count"},
		{"unsorted", func(i *Index) {
			ts := i.Inverters["1"].Timestamps
			ts[0], ts[1] = ts[1], ts[0]
		}, "ascending"},
		{"duplicate", func(i *Index) {
			ts := i.Inverters["1"].Timestamps
			ts[1] = ts[0]
		}, "ascending"},
		{"key mismatch", func(i *Index) { i.Inverters["1"].InverterID = 2 }, "does not match"},
		{"summary inverters", func(i *Index) { i.Summary.TotalInverters = 3 }, "total_inverters"},
		{"summary total", func(i *Index) { i.Summary.TotalPredictionTimestamps = 1 }, "total_prediction_timestamps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := valid()
			tt.mutate(idx)
			err := idx.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, valid().Validate())
}
