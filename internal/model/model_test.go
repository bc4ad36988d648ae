package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlant(t *testing.T) {
	p, err := ParsePlant(1)
	require.NoError(t, err)
	assert.Equal(t, Plant1, p)

	p, err = ParsePlant(2)
	require.NoError(t, err)
	assert.Equal(t, Plant2, p)

	_, err = ParsePlant(3)
	assert.Error(t, err)
	_, err = ParsePlant(0)
	assert.Error(t, err)
}

func TestPlantProfiles(t *testing.T) {
	prof, ok := Plant1.Profile()
	require.True(t, ok)
	assert.Equal(t, "Plant1_inverter_Model_V2", prof.ModelID)
	assert.Equal(t, ColumnACPower, prof.Target)

	prof, ok = Plant2.Profile()
	require.True(t, ok)
	assert.Equal(t, "Plant2_inverter_Model", prof.ModelID)

	_, ok = Plant(7).Profile()
	assert.False(t, ok)

	assert.Equal(t, []Plant{Plant1, Plant2}, Plants())
	assert.Equal(t, "plant2", Plant2.Measurement())
}

func TestReading_MissingValues(t *testing.T) {
	ts := time.Date(2020, 5, 15, 0, 0, 0, 0, time.UTC)
	r := NewReading(Plant1, 3, ts)

	assert.False(t, r.HasTarget())
	assert.False(t, r.Complete([]Column{ColumnACPower}))

	require.True(t, r.Set(ColumnACPower, 12.5))
	assert.True(t, r.HasTarget())
	assert.True(t, r.Complete([]Column{ColumnACPower}))
	assert.False(t, r.Complete([]Column{ColumnACPower, ColumnIrradiation}))

	v, ok := r.Value(ColumnACPower)
	require.True(t, ok)
	assert.InDelta(t, 12.5, v, 1e-9)

	v, ok = r.Value(Column("BOGUS"))
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))
	assert.False(t, r.Set(Column("BOGUS"), 1))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2020, 5, 15, 6, 15, 0, 0, time.UTC)

	tests := []struct {
		in string
	}{
		{"2020-05-15T06:15:00"},
		{"2020-05-15 06:15:00"},
		{"2020-05-15T06:15"},
		{" 2020-05-15 06:15 "},
		{"2020-05-15T08:15:00+02:00"},
		{"2020-05-15T06:15:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got))
			assert.Equal(t, "2020-05-15T06:15:00", FormatTimestamp(got))
		})
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
	_, err = ParseTimestamp("")
	assert.Error(t, err)
}
