package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"solar_forecast/internal/model"
)

type seriesKey struct {
	plant    model.Plant
	inverter int
}

// Store holds inverter readings in memory, one sorted series per (plant, inverter).
type Store struct {
	mu     sync.RWMutex
	series map[seriesKey][]model.Reading // sorted by timestamp, no duplicates
}

func New() *Store {
	return &Store{
		series: make(map[seriesKey][]model.Reading),
	}
}

// AddReadings merges readings into their series. A reading whose timestamp
// is already present replaces the stored one.
func (s *Store) AddReadings(readings []model.Reading) {
	if len(readings) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[seriesKey]bool)
	for _, r := range readings {
		key := seriesKey{plant: r.Plant, inverter: r.InverterID}
		s.series[key] = append(s.series[key], r)
		touched[key] = true
	}

	for key := range touched {
		all := s.series[key]
		sort.SliceStable(all, func(i, j int) bool {
			return all[i].Timestamp.Before(all[j].Timestamp)
		})
		s.series[key] = dedupeLast(all)
	}
}

// dedupeLast keeps the last of each run of equal timestamps.
func dedupeLast(sorted []model.Reading) []model.Reading {
	out := sorted[:0]
	for i, r := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Timestamp.Equal(r.Timestamp) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// WriteReadings implements Writer.
func (s *Store) WriteReadings(_ context.Context, readings []model.Reading) error {
	s.AddReadings(readings)
	return nil
}

// ReadingCount returns the number of readings of one inverter.
func (s *Store) ReadingCount(plant model.Plant, inverter int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[seriesKey{plant: plant, inverter: inverter}])
}

// TimeRange returns the time range covered by one inverter's readings.
func (s *Store) TimeRange(plant model.Plant, inverter int) (model.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readings := s.series[seriesKey{plant: plant, inverter: inverter}]
	if len(readings) == 0 {
		return model.TimeRange{}, false
	}
	return model.TimeRange{
		Start: readings[0].Timestamp,
		End:   readings[len(readings)-1].Timestamp,
	}, true
}

// Inverters returns the inverter ids of a plant in ascending order.
func (s *Store) Inverters(_ context.Context, plant model.Plant) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int
	for key, readings := range s.series {
		if key.plant == plant && len(readings) > 0 {
			ids = append(ids, key.inverter)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// Series returns a copy of one inverter's sorted readings.
func (s *Store) Series(_ context.Context, plant model.Plant, inverter int) ([]model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.series[seriesKey{plant: plant, inverter: inverter}]
	if len(all) == 0 {
		return nil, nil
	}
	result := make([]model.Reading, len(all))
	copy(result, all)
	return result, nil
}

// PlantHistory returns every reading of a plant, grouped by inverter.
func (s *Store) PlantHistory(ctx context.Context, plant model.Plant) ([]model.Reading, error) {
	ids, err := s.Inverters(ctx, plant)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []model.Reading
	for _, id := range ids {
		history = append(history, s.series[seriesKey{plant: plant, inverter: id}]...)
	}
	return history, nil
}

// ReadingsInRange returns readings of one inverter between start (inclusive) and end (exclusive).
func (s *Store) ReadingsInRange(_ context.Context, plant model.Plant, inverter int, start, end time.Time) ([]model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.series[seriesKey{plant: plant, inverter: inverter}]
	if len(all) == 0 {
		return nil, nil
	}

	// Binary search for start index
	startIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(start)
	})

	// Binary search for end index
	endIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(end)
	})

	if startIdx >= endIdx {
		return nil, nil
	}

	result := make([]model.Reading, endIdx-startIdx)
	copy(result, all[startIdx:endIdx])
	return result, nil
}
