package predictor

import (
	"fmt"
	"math"

	"solar_forecast/internal/model"
)

// MinMaxScaler maps each column linearly onto [0, 1] using fitted bounds.
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// FitMinMax computes per-column bounds over rows, ignoring NaN values.
func FitMinMax(rows [][]float64) (MinMaxScaler, error) {
	if len(rows) == 0 {
		return MinMaxScaler{}, fmt.Errorf("no rows to fit")
	}
	width := len(rows[0])
	s := MinMaxScaler{
		Min: make([]float64, width),
		Max: make([]float64, width),
	}
	seen := make([]bool, width)

	for i, row := range rows {
		if len(row) != width {
			return MinMaxScaler{}, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if !seen[j] || v < s.Min[j] {
				s.Min[j] = v
			}
			if !seen[j] || v > s.Max[j] {
				s.Max[j] = v
			}
			seen[j] = true
		}
	}

	for j, ok := range seen {
		if !ok {
			return MinMaxScaler{}, fmt.Errorf("column %d has no observed values", j)
		}
	}
	return s, nil
}

// Width is the number of columns the scaler was fit on.
func (s MinMaxScaler) Width() int {
	return len(s.Min)
}

// span returns the fitted range of column j, with 1 standing in for a
// constant column.
func (s MinMaxScaler) span(j int) float64 {
	r := s.Max[j] - s.Min[j]
	if r == 0 {
		return 1
	}
	return r
}

// Transform scales one row. NaN values pass through unchanged.
func (s MinMaxScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != s.Width() {
		return nil, fmt.Errorf("row has %d columns, scaler expects %d", len(row), s.Width())
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Min[j]) / s.span(j)
	}
	return out, nil
}

// InverseTransform maps a scaled row back to physical units.
func (s MinMaxScaler) InverseTransform(row []float64) ([]float64, error) {
	if len(row) != s.Width() {
		return nil, fmt.Errorf("row has %d columns, scaler expects %d", len(row), s.Width())
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = v*s.span(j) + s.Min[j]
	}
	return out, nil
}

// ScalerSet holds the fitted feature and target scalers of one plant.
type ScalerSet struct {
	Features []string     `json:"features"`
	Feature  MinMaxScaler `json:"feature_scaler"`
	Target   MinMaxScaler `json:"target_scaler"`

	raw    []model.Column
	target model.Column
}

// FeatureRow builds the unscaled model input for one reading: the raw
// columns in profile order followed by the cyclical time features.
func FeatureRow(r model.Reading, raw []model.Column) []float64 {
	row := make([]float64, 0, len(raw)+len(CyclicalFeatures))
	for _, c := range raw {
		v, _ := r.Value(c)
		row = append(row, v)
	}
	return append(row, EncodeTime(r.Timestamp).Values()...)
}

// FitScalerSet fits feature and target scalers over a plant's full history.
func FitScalerSet(history []model.Reading, profile model.PlantProfile) (*ScalerSet, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("no readings to fit scalers on")
	}

	features := make([][]float64, len(history))
	targets := make([][]float64, len(history))
	for i, r := range history {
		features[i] = FeatureRow(r, profile.Features)
		v, _ := r.Value(profile.Target)
		targets[i] = []float64{v}
	}

	names := make([]string, 0, len(profile.Features)+len(CyclicalFeatures))
	for _, c := range profile.Features {
		names = append(names, string(c))
	}
	names = append(names, CyclicalFeatures...)

	fs, err := FitMinMax(features)
	if err != nil {
		return nil, fmt.Errorf("fitting feature scaler: %w", err)
	}
	ts, err := FitMinMax(targets)
	if err != nil {
		return nil, fmt.Errorf("fitting target scaler: %w", err)
	}

	return &ScalerSet{
		Features: names,
		Feature:  fs,
		Target:   ts,
		raw:      profile.Features,
		target:   profile.Target,
	}, nil
}

// TransformWindow encodes and scales readings into an (L, F) matrix.
func (s *ScalerSet) TransformWindow(readings []model.Reading) ([][]float64, error) {
	out := make([][]float64, len(readings))
	for i, r := range readings {
		row, err := s.Feature.Transform(FeatureRow(r, s.raw))
		if err != nil {
			return nil, fmt.Errorf("scaling reading at %s: %w", model.FormatTimestamp(r.Timestamp), err)
		}
		out[i] = row
	}
	return out, nil
}

// InverseTarget maps a scaled prediction back to physical units.
func (s *ScalerSet) InverseTarget(v float64) float64 {
	return v*s.Target.span(0) + s.Target.Min[0]
}
