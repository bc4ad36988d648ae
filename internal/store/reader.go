package store

import (
	"context"
	"time"

	"solar_forecast/internal/model"
)

// HistoryReader returns the full history of a plant, for scaler fitting.
type HistoryReader interface {
	PlantHistory(ctx context.Context, plant model.Plant) ([]model.Reading, error)
}

// RangeReader returns one inverter's readings in [start, end), ascending.
type RangeReader interface {
	ReadingsInRange(ctx context.Context, plant model.Plant, inverter int, start, end time.Time) ([]model.Reading, error)
}

// SeriesReader enumerates inverters and their complete sorted series.
type SeriesReader interface {
	Inverters(ctx context.Context, plant model.Plant) ([]int, error)
	Series(ctx context.Context, plant model.Plant, inverter int) ([]model.Reading, error)
}

// Reader is the read side every backend provides.
type Reader interface {
	HistoryReader
	RangeReader
	SeriesReader
}

// Writer persists readings. Rewriting an existing (plant, inverter, timestamp)
// replaces the earlier values.
type Writer interface {
	WriteReadings(ctx context.Context, readings []model.Reading) error
}
