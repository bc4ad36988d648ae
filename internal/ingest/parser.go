package ingest

import (
	"io"

	"solar_forecast/internal/model"
)

// Parser reads inverter data from a source and returns readings.
type Parser interface {
	Parse(r io.Reader) ([]model.Reading, error)
}
