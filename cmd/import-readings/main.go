// import-readings loads plant{n}_final.csv exports into the configured
// sqlite or InfluxDB reading store.
//
// Usage:
//
//	import-readings data/plant1_final.csv data/plant2_final.csv
//	import-readings -backend influx -batch 2000 data/plant1_final.csv
//	import-readings -plant 2 exports/latest.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"solar_forecast/internal/app"
	"solar_forecast/internal/config"
	"solar_forecast/internal/ingest"
	"solar_forecast/internal/logger"
	"solar_forecast/internal/model"
	"solar_forecast/internal/store"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "path to YAML configuration file")
	backend := flag.String("backend", "", "override store.backend (sqlite or influx)")
	plantFlag := flag.Int("plant", 0, "plant of every file (0 = infer from file name)")
	batchSize := flag.Int("batch", 5000, "readings per write")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: import-readings [flags] FILE.csv...")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	if cfg.Store.Backend == config.BackendMemory {
		fmt.Fprintln(os.Stderr, "Error: the memory backend reads CSV files directly; choose sqlite or influx")
		os.Exit(1)
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	ctx := context.Background()
	st, closer, err := app.OpenStore(ctx, cfg, log.WithComponent("store"))
	if err != nil {
		log.WithError(err).Error("Failed to open store")
		os.Exit(1)
	}
	defer closer.Close()

	for _, path := range flag.Args() {
		plant, err := resolvePlant(path, *plantFlag)
		if err != nil {
			log.WithError(err).Error("Skipping file")
			continue
		}

		start := time.Now()
		parser := &ingest.PlantParser{Plant: plant}
		readings, err := app.ParseFile(path, parser)
		if err != nil {
			log.WithError(err).Error("Failed to parse file")
			closer.Close()
			os.Exit(1)
		}
		if err := writeBatches(ctx, st, readings, *batchSize); err != nil {
			log.WithError(err).WithFields(logger.Fields{"file": path}).Error("Failed to write readings")
			closer.Close()
			os.Exit(1)
		}
		logger.LogPerformance(log.WithComponent("import"), "import_file", time.Since(start), logger.Fields{
			"file":     path,
			"plant":    int(plant),
			"readings": len(readings),
			"skipped":  parser.Skipped,
		})
	}
}

func resolvePlant(path string, flagPlant int) (model.Plant, error) {
	if flagPlant != 0 {
		return model.ParsePlant(flagPlant)
	}
	plant, ok := ingest.PlantFromFilename(path)
	if !ok {
		return 0, fmt.Errorf("cannot infer plant from %s; pass -plant", path)
	}
	return plant, nil
}

func writeBatches(ctx context.Context, w store.Writer, readings []model.Reading, size int) error {
	if size <= 0 {
		size = len(readings)
	}
	for start := 0; start < len(readings); start += size {
		end := min(start+size, len(readings))
		if err := w.WriteReadings(ctx, readings[start:end]); err != nil {
			return fmt.Errorf("writing readings %d-%d: %w", start, end, err)
		}
	}
	return nil
}
