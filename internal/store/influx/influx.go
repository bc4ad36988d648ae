// Package influx reads and writes inverter readings in InfluxDB 2.x.
// Each plant is a measurement (plant1, plant2) tagged by SOURCE_KEY with one
// field per column.
package influx

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"solar_forecast/internal/model"
)

// TagSourceKey carries the inverter id.
const TagSourceKey = "SOURCE_KEY"

var fields = []model.Column{
	model.ColumnDCPower,
	model.ColumnACPower,
	model.ColumnDailyYield,
	model.ColumnTotalYield,
	model.ColumnAmbientTemp,
	model.ColumnModuleTemp,
	model.ColumnIrradiation,
}

type Options struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// Store implements store.Reader and store.Writer on top of an InfluxDB bucket.
type Store struct {
	client influxdb2.Client
	query  api.QueryAPI
	write  api.WriteAPIBlocking
	bucket string
}

// Open creates a client for the configured bucket.
func Open(opts Options) *Store {
	o := influxdb2.DefaultOptions()
	if opts.Timeout > 0 {
		o.SetHTTPRequestTimeout(uint(opts.Timeout / time.Second))
	}
	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token, o)
	return &Store{
		client: client,
		query:  client.QueryAPI(opts.Org),
		write:  client.WriteAPIBlocking(opts.Org, opts.Bucket),
		bucket: opts.Bucket,
	}
}

// Close releases the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("pinging influxdb: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb is not ready")
	}
	return nil
}

// seriesQuery builds a pivoted Flux query. A zero start reads from the epoch;
// a zero stop reads up to now.
func seriesQuery(bucket string, plant model.Plant, inverter *int, start, stop time.Time) string {
	rng := "start: 0"
	if !start.IsZero() {
		rng = "start: " + start.UTC().Format(time.RFC3339)
	}
	if !stop.IsZero() {
		rng += ", stop: " + stop.UTC().Format(time.RFC3339)
	}

	filter := fmt.Sprintf(`r._measurement == %q`, plant.Measurement())
	if inverter != nil {
		filter += fmt.Sprintf(` and r.%s == %q`, TagSourceKey, strconv.Itoa(*inverter))
	}

	return fmt.Sprintf(`from(bucket: %q)
  |> range(%s)
  |> filter(fn: (r) => %s)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: [%q, "_time"])`, bucket, rng, filter, TagSourceKey)
}

func invertersQuery(bucket string, plant model.Plant) string {
	return fmt.Sprintf(`import "influxdata/influxdb/schema"

schema.tagValues(bucket: %q, tag: %q, predicate: (r) => r._measurement == %q, start: 0)`,
		bucket, TagSourceKey, plant.Measurement())
}

// recordToReading converts one pivoted row.
func recordToReading(plant model.Plant, rec *query.FluxRecord) (model.Reading, error) {
	key, ok := rec.ValueByKey(TagSourceKey).(string)
	if !ok {
		return model.Reading{}, fmt.Errorf("record without %s tag", TagSourceKey)
	}
	inverter, err := strconv.Atoi(key)
	if err != nil {
		return model.Reading{}, fmt.Errorf("parsing %s %q: %w", TagSourceKey, key, err)
	}

	r := model.NewReading(plant, inverter, rec.Time().UTC())
	for _, c := range fields {
		switch v := rec.ValueByKey(string(c)).(type) {
		case float64:
			r.Set(c, v)
		case int64:
			r.Set(c, float64(v))
		}
	}
	return r, nil
}

// FieldRowMarker is written for readings whose values are all missing, so
// the row survives a round trip.
const FieldRowMarker = "row"

// readingToPoint omits missing values; InfluxDB has no NaN field values.
func readingToPoint(r model.Reading) *write.Point {
	values := make(map[string]interface{}, len(fields))
	for _, c := range fields {
		if v, _ := r.Value(c); !math.IsNaN(v) {
			values[string(c)] = v
		}
	}
	if len(values) == 0 {
		values[FieldRowMarker] = true
	}
	return influxdb2.NewPoint(
		r.Plant.Measurement(),
		map[string]string{TagSourceKey: strconv.Itoa(r.InverterID)},
		values,
		r.Timestamp,
	)
}

func (s *Store) readings(ctx context.Context, plant model.Plant, flux string) ([]model.Reading, error) {
	result, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", plant.Measurement(), err)
	}
	defer result.Close()

	var readings []model.Reading
	for result.Next() {
		r, err := recordToReading(plant, result.Record())
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading %s results: %w", plant.Measurement(), err)
	}
	return readings, nil
}

// PlantHistory returns every reading of a plant.
func (s *Store) PlantHistory(ctx context.Context, plant model.Plant) ([]model.Reading, error) {
	return s.readings(ctx, plant, seriesQuery(s.bucket, plant, nil, time.Time{}, time.Time{}))
}

// Series returns one inverter's complete series.
func (s *Store) Series(ctx context.Context, plant model.Plant, inverter int) ([]model.Reading, error) {
	return s.readings(ctx, plant, seriesQuery(s.bucket, plant, &inverter, time.Time{}, time.Time{}))
}

// ReadingsInRange returns readings between start (inclusive) and end (exclusive).
func (s *Store) ReadingsInRange(ctx context.Context, plant model.Plant, inverter int, start, end time.Time) ([]model.Reading, error) {
	return s.readings(ctx, plant, seriesQuery(s.bucket, plant, &inverter, start, end))
}

// Inverters lists the SOURCE_KEY values of a plant in ascending order.
func (s *Store) Inverters(ctx context.Context, plant model.Plant) ([]int, error) {
	result, err := s.query.Query(ctx, invertersQuery(s.bucket, plant))
	if err != nil {
		return nil, fmt.Errorf("querying inverters of %s: %w", plant.Measurement(), err)
	}
	defer result.Close()

	var ids []int
	for result.Next() {
		v, ok := result.Record().Value().(string)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing %s %q: %w", TagSourceKey, v, err)
		}
		ids = append(ids, id)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading inverters of %s: %w", plant.Measurement(), err)
	}
	sort.Ints(ids)
	return ids, nil
}

// WriteReadings writes points with the blocking write API.
func (s *Store) WriteReadings(ctx context.Context, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	points := make([]*write.Point, len(readings))
	for i, r := range readings {
		points[i] = readingToPoint(r)
	}
	if err := s.write.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}
	return nil
}
