package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"solar_forecast/internal/model"
)

// PlantParser parses the merged generation + weather export of one plant.
//
// Expected format (the leading unnamed index column is optional):
//
//	,DATE_TIME,SOURCE_KEY,DC_POWER,AC_POWER,DAILY_YIELD,TOTAL_YIELD,AMBIENT_TEMPERATURE,MODULE_TEMPERATURE,IRRADIATION
//	0,2020-05-15 00:00:00,1,0.0,0.0,0.0,6259559.0,25.18,22.85,0.0
//
// Columns are matched by name. Empty or "nan" values become missing values;
// rows with an unusable timestamp or inverter id are skipped.
type PlantParser struct {
	Plant model.Plant

	// Skipped counts rows dropped by the last Parse call.
	Skipped int
}

const (
	colDateTime  = "DATE_TIME"
	colSourceKey = "SOURCE_KEY"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04",
	"2006-01-02 15:04",
}

func (p *PlantParser) Parse(r io.Reader) ([]model.Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	layout, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var readings []model.Reading
	p.Skipped = 0
	lineNum := 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		reading, err := p.parseRecord(record, layout, lineNum)
		if err != nil {
			p.Skipped++
			continue
		}

		readings = append(readings, reading)
	}

	return readings, nil
}

type headerLayout struct {
	dateTime  int
	sourceKey int
	values    map[model.Column]int
}

func parseHeader(header []string) (headerLayout, error) {
	l := headerLayout{dateTime: -1, sourceKey: -1, values: make(map[model.Column]int)}
	for i, raw := range header {
		name := strings.ToUpper(strings.TrimSpace(raw))
		switch name {
		case colDateTime:
			l.dateTime = i
		case colSourceKey:
			l.sourceKey = i
		default:
			if _, ok := model.ColumnCatalog[model.Column(name)]; ok {
				l.values[model.Column(name)] = i
			}
		}
	}

	if l.dateTime < 0 {
		return l, fmt.Errorf("missing required column %q", colDateTime)
	}
	if l.sourceKey < 0 {
		return l, fmt.Errorf("missing required column %q", colSourceKey)
	}
	if _, ok := l.values[model.ColumnACPower]; !ok {
		return l, fmt.Errorf("missing required column %q", model.ColumnACPower)
	}
	return l, nil
}

func (p *PlantParser) parseRecord(record []string, l headerLayout, lineNum int) (model.Reading, error) {
	if len(record) <= l.dateTime || len(record) <= l.sourceKey {
		return model.Reading{}, fmt.Errorf("line %d: expected at least %d fields, got %d",
			lineNum, max(l.dateTime, l.sourceKey)+1, len(record))
	}

	ts, err := parseDateTime(record[l.dateTime])
	if err != nil {
		return model.Reading{}, fmt.Errorf("line %d: %w", lineNum, err)
	}

	inverter, err := strconv.Atoi(strings.TrimSpace(record[l.sourceKey]))
	if err != nil {
		return model.Reading{}, fmt.Errorf("line %d: parsing %s: %w", lineNum, colSourceKey, err)
	}

	reading := model.NewReading(p.Plant, inverter, ts)
	for col, idx := range l.values {
		if idx >= len(record) {
			continue
		}
		v, err := parseValue(record[idx])
		if err != nil {
			return model.Reading{}, fmt.Errorf("line %d: parsing %s: %w", lineNum, col, err)
		}
		reading.Set(col, v)
	}
	return reading, nil
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing %q as %s", s, colDateTime)
}

// parseValue maps empty and NaN markers to math.NaN().
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

var plantFilePattern = regexp.MustCompile(`(?i)plant_?(\d+)_final\.csv$`)

// PlantFromFilename extracts the plant from names like plant1_final.csv.
func PlantFromFilename(path string) (model.Plant, bool) {
	m := plantFilePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	plant, err := model.ParsePlant(n)
	if err != nil {
		return 0, false
	}
	return plant, true
}

// PlantFilename is the conventional export name for a plant.
func PlantFilename(plant model.Plant) string {
	return fmt.Sprintf("plant%d_final.csv", int(plant))
}
