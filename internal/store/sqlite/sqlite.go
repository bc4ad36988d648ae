// Package sqlite persists inverter readings in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"solar_forecast/internal/model"
)

// columns is the order of measured values in every statement.
var columns = []model.Column{
	model.ColumnDCPower,
	model.ColumnACPower,
	model.ColumnDailyYield,
	model.ColumnTotalYield,
	model.ColumnAmbientTemp,
	model.ColumnModuleTemp,
	model.ColumnIrradiation,
}

// Store implements store.Reader and store.Writer. Timestamps are stored as
// unix seconds; missing values as NULL.
type Store struct {
	db       *sql.DB
	mutex    sync.RWMutex
	prepared map[string]*sql.Stmt
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:       db,
		prepared: make(map[string]*sql.Stmt),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func columnList() string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = strings.ToLower(string(c))
	}
	return strings.Join(names, ", ")
}

func (s *Store) initSchema() error {
	var defs []string
	for _, c := range columns {
		defs = append(defs, fmt.Sprintf("\t\t%s REAL,", strings.ToLower(string(c))))
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS readings (
		plant INTEGER NOT NULL,
		inverter_id INTEGER NOT NULL,
		ts INTEGER NOT NULL,
%s
		PRIMARY KEY (plant, inverter_id, ts)
	);

	CREATE INDEX IF NOT EXISTS idx_plant_ts ON readings(plant, ts);
	`, strings.Join(defs, "\n"))

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	cols := columnList()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)+3), ", ")

	statements := map[string]string{
		"upsert": fmt.Sprintf(`
			INSERT OR REPLACE INTO readings (plant, inverter_id, ts, %s)
			VALUES (%s)
		`, cols, placeholders),
		"select_range": fmt.Sprintf(`
			SELECT plant, inverter_id, ts, %s
			FROM readings
			WHERE plant = ? AND inverter_id = ? AND ts >= ? AND ts < ?
			ORDER BY ts ASC
		`, cols),
		"select_series": fmt.Sprintf(`
			SELECT plant, inverter_id, ts, %s
			FROM readings
			WHERE plant = ? AND inverter_id = ?
			ORDER BY ts ASC
		`, cols),
		"select_plant": fmt.Sprintf(`
			SELECT plant, inverter_id, ts, %s
			FROM readings
			WHERE plant = ?
			ORDER BY inverter_id ASC, ts ASC
		`, cols),
		"select_inverters": `
			SELECT DISTINCT inverter_id
			FROM readings
			WHERE plant = ?
			ORDER BY inverter_id ASC
		`,
	}

	for name, query := range statements {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		s.prepared[name] = stmt
	}
	return nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// WriteReadings upserts readings in a single transaction.
func (s *Store) WriteReadings(ctx context.Context, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt := tx.StmtContext(ctx, s.prepared["upsert"])

	args := make([]interface{}, 0, len(columns)+3)
	for _, r := range readings {
		args = append(args[:0], int(r.Plant), r.InverterID, r.Timestamp.Unix())
		for _, c := range columns {
			v, _ := r.Value(c)
			args = append(args, nullable(v))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to store reading for inverter %d at %s: %w",
				r.InverterID, model.FormatTimestamp(r.Timestamp), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit readings: %w", err)
	}
	return nil
}

// Inverters returns the distinct inverter ids of a plant.
func (s *Store) Inverters(ctx context.Context, plant model.Plant) ([]int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rows, err := s.prepared["select_inverters"].QueryContext(ctx, int(plant))
	if err != nil {
		return nil, fmt.Errorf("failed to query inverters: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan inverter id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ids, nil
}

// Series returns one inverter's complete series.
func (s *Store) Series(ctx context.Context, plant model.Plant, inverter int) ([]model.Reading, error) {
	return s.query(ctx, "select_series", int(plant), inverter)
}

// PlantHistory returns every reading of a plant.
func (s *Store) PlantHistory(ctx context.Context, plant model.Plant) ([]model.Reading, error) {
	return s.query(ctx, "select_plant", int(plant))
}

// ReadingsInRange returns readings between start (inclusive) and end (exclusive).
func (s *Store) ReadingsInRange(ctx context.Context, plant model.Plant, inverter int, start, end time.Time) ([]model.Reading, error) {
	return s.query(ctx, "select_range", int(plant), inverter, start.Unix(), end.Unix())
}

func (s *Store) query(ctx context.Context, name string, args ...interface{}) ([]model.Reading, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rows, err := s.prepared[name].QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]model.Reading, error) {
	var readings []model.Reading

	values := make([]sql.NullFloat64, len(columns))
	dest := make([]interface{}, len(columns)+3)
	var plant, inverter int
	var ts int64
	dest[0], dest[1], dest[2] = &plant, &inverter, &ts
	for i := range values {
		dest[i+3] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r := model.NewReading(model.Plant(plant), inverter, time.Unix(ts, 0).UTC())
		for i, c := range columns {
			if values[i].Valid {
				r.Set(c, values[i].Float64)
			}
		}
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return readings, nil
}

// Close closes prepared statements and the database.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, stmt := range s.prepared {
		stmt.Close()
	}
	return s.db.Close()
}
