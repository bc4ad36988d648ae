// Package app wires configuration, the reading store, caches and the
// inference executor together for the command-line tools.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"solar_forecast/internal/config"
	"solar_forecast/internal/inference"
	"solar_forecast/internal/ingest"
	"solar_forecast/internal/logger"
	"solar_forecast/internal/metrics"
	"solar_forecast/internal/model"
	"solar_forecast/internal/store"
	"solar_forecast/internal/store/influx"
	"solar_forecast/internal/store/sqlite"
	"solar_forecast/internal/tsindex"
)

// App holds the long-lived services of one process.
type App struct {
	Config   *config.Config
	Log      *logger.Log
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store    store.Reader
	Writer   store.Writer
	Indexes  tsindex.FileStore
	Executor *inference.Executor

	closer io.Closer
}

// New configures logging, opens the configured store and builds the executor.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.GetLogger()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	st, closer, err := OpenStore(ctx, cfg, log.WithComponent("store"))
	if err != nil {
		return nil, err
	}

	indexes := tsindex.FileStore{Dir: cfg.Data.IndexDir}
	exec := &inference.Executor{
		Readings:       st,
		Scalers:        inference.NewScalerManager(st, m),
		Models:         inference.NewModelCache(inference.DirLoader(cfg.Data.ModelsDir), m),
		Indexes:        inference.NewIndexCache(indexes, m),
		SequenceLength: cfg.Inference.SequenceLength,
		Lookback:       cfg.Inference.Lookback,
		Log:            log.WithComponent("inference"),
		Metrics:        m,
	}

	return &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  m,
		Store:    st,
		Writer:   st,
		Indexes:  indexes,
		Executor: exec,
		closer:   closer,
	}, nil
}

// IndexBuilder returns a builder configured from the index section.
func (a *App) IndexBuilder() *tsindex.Builder {
	return &tsindex.Builder{
		SequenceLength: a.Config.Inference.SequenceLength,
		Workers:        a.Config.Index.Workers,
		Log:            a.Log.WithComponent("tsindex"),
		Metrics:        a.Metrics,
	}
}

// WriteMetrics dumps the registry to the configured textfile, if any.
func (a *App) WriteMetrics() error {
	if a.Config.Metrics.Textfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(a.Config.Metrics.Textfile, a.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// ReadWriter is a store that serves both lookups and imports.
type ReadWriter interface {
	store.Reader
	store.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the backend named by cfg.Store.Backend.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Entry) (ReadWriter, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		s := store.New()
		n, err := LoadCSVDir(cfg.Data.CSVDir, s, log)
		if err != nil {
			return nil, nil, err
		}
		if n == 0 {
			return nil, nil, fmt.Errorf("no plant CSV files found in %s", cfg.Data.CSVDir)
		}
		return s, nopCloser{}, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		log.WithFields(logger.Fields{"path": cfg.Store.SQLite.Path}).Info("sqlite store opened")
		return s, s, nil

	case config.BackendInflux:
		s := influx.Open(influx.Options{
			URL:     cfg.Store.Influx.URL,
			Token:   cfg.Store.Influx.Token,
			Org:     cfg.Store.Influx.Org,
			Bucket:  cfg.Store.Influx.Bucket,
			Timeout: cfg.Store.Influx.Timeout,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.Ping(pingCtx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("connecting to influxdb: %w", err)
		}
		log.WithFields(logger.Fields{"url": cfg.Store.Influx.URL, "bucket": cfg.Store.Influx.Bucket}).Info("influxdb store opened")
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// LoadCSVDir parses every plant{n}_final.csv file in dir into s and returns
// the number of files loaded. Other files are ignored.
func LoadCSVDir(dir string, s *store.Store, log *logger.Entry) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading input directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}
		plant, ok := ingest.PlantFromFilename(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		parser := &ingest.PlantParser{Plant: plant}
		readings, err := ParseFile(path, parser)
		if err != nil {
			return loaded, err
		}

		s.AddReadings(readings)
		loaded++
		log.WithFields(logger.Fields{
			"file":     entry.Name(),
			"plant":    int(plant),
			"readings": len(readings),
			"skipped":  parser.Skipped,
		}).Info("loaded plant data")
	}
	return loaded, nil
}

// ParseFile runs p over one file.
func ParseFile(path string, p ingest.Parser) ([]model.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	readings, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return readings, nil
}
