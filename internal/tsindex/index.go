// Package tsindex builds and persists the per-plant index of timestamps an
// inverter can be forecast for.
package tsindex

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"solar_forecast/internal/model"
)

// Index is the persisted prediction-eligibility index of one plant. It is
// replaced wholesale on regeneration and never mutated after Assemble.
type Index struct {
	Plant          int                       `json:"plant"`
	GeneratedAt    string                    `json:"generated_at"`
	SequenceLength int                       `json:"sequence_length"`
	Inverters      map[string]*InverterEntry `json:"inverters"`
	Summary        Summary                   `json:"summary"`
}

// InverterEntry lists the prediction timestamps of one inverter.
type InverterEntry struct {
	InverterID      int      `json:"inverter_id"`
	PredictionCount int      `json:"prediction_count"`
	FirstPrediction *string  `json:"first_prediction"`
	LastPrediction  *string  `json:"last_prediction"`
	Timestamps      []string `json:"timestamps"`
}

type Summary struct {
	TotalInverters            int        `json:"total_inverters"`
	TotalPredictionTimestamps int        `json:"total_prediction_timestamps"`
	AveragePerInverter        OneDecimal `json:"average_per_inverter"`
	DateRange                 DateRange  `json:"date_range"`
}

// DateRange spans the raw readings of the plant. Both ends are null when
// the plant has no readings.
type DateRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// OneDecimal is a float encoded with exactly one fractional digit.
type OneDecimal float64

func (d OneDecimal) MarshalJSON() ([]byte, error) {
	return []byte(decimal.NewFromFloat(float64(d)).StringFixed(1)), nil
}

func (d *OneDecimal) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("parsing one-decimal value %s: %w", b, err)
	}
	*d = OneDecimal(v)
	return nil
}

// InverterTimestamps is the validator output for one inverter.
type InverterTimestamps struct {
	InverterID int
	Timestamps []time.Time
}

// Average returns total/max(1, n) rounded half away from zero to one decimal.
func Average(total, n int) OneDecimal {
	avg := decimal.NewFromInt(int64(total)).DivRound(decimal.NewFromInt(int64(max(1, n))), 1)
	return OneDecimal(avg.InexactFloat64())
}

// Assemble builds an index from per-inverter timestamp lists. span is the
// min/max over every raw reading of the plant, or nil when there are none.
func Assemble(plant model.Plant, sequenceLength int, generatedAt time.Time, inverters []InverterTimestamps, span *model.TimeRange) *Index {
	idx := &Index{
		Plant:          int(plant),
		GeneratedAt:    generatedAt.Format(model.GeneratedAtLayout),
		SequenceLength: sequenceLength,
		Inverters:      make(map[string]*InverterEntry, len(inverters)),
	}

	total := 0
	for _, inv := range inverters {
		entry := &InverterEntry{
			InverterID:      inv.InverterID,
			PredictionCount: len(inv.Timestamps),
			Timestamps:      make([]string, len(inv.Timestamps)),
		}
		for i, ts := range inv.Timestamps {
			entry.Timestamps[i] = model.FormatTimestamp(ts)
		}
		if n := len(entry.Timestamps); n > 0 {
			first, last := entry.Timestamps[0], entry.Timestamps[n-1]
			entry.FirstPrediction = &first
			entry.LastPrediction = &last
		}
		idx.Inverters[strconv.Itoa(inv.InverterID)] = entry
		total += entry.PredictionCount
	}

	idx.Summary = Summary{
		TotalInverters:            len(idx.Inverters),
		TotalPredictionTimestamps: total,
		AveragePerInverter:        Average(total, len(idx.Inverters)),
	}
	if span != nil {
		start := model.FormatTimestamp(span.Start)
		end := model.FormatTimestamp(span.End)
		idx.Summary.DateRange = DateRange{Start: &start, End: &end}
	}
	return idx
}

// Entry returns the inverter's entry, if present.
func (idx *Index) Entry(inverterID int) (*InverterEntry, bool) {
	e, ok := idx.Inverters[strconv.Itoa(inverterID)]
	return e, ok
}

// InverterIDs returns the indexed inverter ids in ascending order.
func (idx *Index) InverterIDs() []int {
	ids := make([]int, 0, len(idx.Inverters))
	for _, e := range idx.Inverters {
		ids = append(ids, e.InverterID)
	}
	sort.Ints(ids)
	return ids
}

// Allows reports whether ts (canonical form) is an eligible prediction
// timestamp of the inverter. Canonical timestamps sort chronologically.
func (idx *Index) Allows(inverterID int, ts string) bool {
	e, ok := idx.Entry(inverterID)
	if !ok {
		return false
	}
	i := sort.SearchStrings(e.Timestamps, ts)
	return i < len(e.Timestamps) && e.Timestamps[i] == ts
}

// TopInverters returns up to n entries ranked by prediction count, ties by id.
func (idx *Index) TopInverters(n int) []*InverterEntry {
	entries := make([]*InverterEntry, 0, len(idx.Inverters))
	for _, e := range idx.Inverters {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PredictionCount != entries[j].PredictionCount {
			return entries[i].PredictionCount > entries[j].PredictionCount
		}
		return entries[i].InverterID < entries[j].InverterID
	})
	if n >= 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

// Validate checks the structural invariants of a loaded index.
func (idx *Index) Validate() error {
	if _, err := model.ParsePlant(idx.Plant); err != nil {
		return err
	}
	if idx.SequenceLength <= 0 {
		return fmt.Errorf("sequence_length must be greater than 0, got %d", idx.SequenceLength)
	}

	total := 0
	for key, e := range idx.Inverters {
		if e == nil {
			return fmt.Errorf("inverter %s: empty entry", key)
		}
		if key != strconv.Itoa(e.InverterID) {
			return fmt.Errorf("inverter key %q does not match inverter_id %d", key, e.InverterID)
		}
		if e.PredictionCount != len(e.Timestamps) {
			return fmt.Errorf("inverter %s: prediction_count %d but %d timestamps",
				key, e.PredictionCount, len(e.Timestamps))
		}
		for i := 1; i < len(e.Timestamps); i++ {
			if e.Timestamps[i] <= e.Timestamps[i-1] {
				return fmt.Errorf("inverter %s: timestamps not strictly ascending at %d", key, i)
			}
		}
		total += e.PredictionCount
	}

	if idx.Summary.TotalInverters != len(idx.Inverters) {
		return fmt.Errorf("summary.total_inverters %d but %d inverters",
			idx.Summary.TotalInverters, len(idx.Inverters))
	}
	if idx.Summary.TotalPredictionTimestamps != total {
		return fmt.Errorf("summary.total_prediction_timestamps %d but %d timestamps",
			idx.Summary.TotalPredictionTimestamps, total)
	}
	return nil
}
