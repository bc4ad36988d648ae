// build-index scans every inverter series of a plant, records the
// timestamps a forecast can be served for and persists the result as
// prediction_timestamps_plant_{n}.json in the index directory.
//
// Usage:
//
//	build-index
//	build-index -plant 1
//	build-index -config config.yml -parquet
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"solar_forecast/internal/app"
	"solar_forecast/internal/config"
	"solar_forecast/internal/logger"
	"solar_forecast/internal/model"
	"solar_forecast/internal/tsindex"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "path to YAML configuration file")
	plantFlag := flag.Int("plant", 0, "plant to index (0 = all plants)")
	parquetOut := flag.Bool("parquet", false, "also export the index as parquet")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	plants, err := selectPlants(*plantFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to initialize")
		os.Exit(1)
	}
	defer a.Close()

	builder := a.IndexBuilder()
	exitCode := 0
	for _, plant := range plants {
		idx, err := builder.Build(ctx, plant, a.Store)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"plant": int(plant)}).Error("Failed to build index")
			exitCode = 1
			continue
		}
		if err := a.Indexes.Save(idx); err != nil {
			log.WithError(err).WithFields(logger.Fields{"plant": int(plant)}).Error("Failed to save index")
			exitCode = 1
			continue
		}
		a.Executor.Indexes.Invalidate(plant)

		if *parquetOut || cfg.Index.Parquet {
			rows, err := a.Indexes.WriteParquet(idx)
			if err != nil {
				log.WithError(err).WithFields(logger.Fields{"plant": int(plant)}).Error("Failed to export parquet")
				exitCode = 1
			} else {
				log.WithFields(logger.Fields{"path": a.Indexes.ParquetPath(plant), "rows": rows}).Info("parquet export written")
			}
		}

		printSummary(os.Stdout, idx, a.Indexes.Path(plant))
	}

	if err := a.WriteMetrics(); err != nil {
		log.WithError(err).Warn("Failed to write metrics")
	}
	if exitCode != 0 {
		a.Close()
		os.Exit(exitCode)
	}
}

func selectPlants(n int) ([]model.Plant, error) {
	if n == 0 {
		return model.Plants(), nil
	}
	p, err := model.ParsePlant(n)
	if err != nil {
		return nil, err
	}
	return []model.Plant{p}, nil
}

func printSummary(w io.Writer, idx *tsindex.Index, path string) {
	s := idx.Summary
	fmt.Fprintf(w, "Plant %d: saved %s\n", idx.Plant, path)
	fmt.Fprintf(w, "  Generated at:      %s\n", idx.GeneratedAt)
	fmt.Fprintf(w, "  Sequence length:   %d\n", idx.SequenceLength)
	fmt.Fprintf(w, "  Inverters:         %d\n", s.TotalInverters)
	fmt.Fprintf(w, "  Predictions:       %d\n", s.TotalPredictionTimestamps)
	fmt.Fprintf(w, "  Average/inverter:  %.1f\n", float64(s.AveragePerInverter))
	if s.DateRange.Start != nil {
		fmt.Fprintf(w, "  Date range:        %s to %s\n", *s.DateRange.Start, *s.DateRange.End)
	} else {
		fmt.Fprintln(w, "  Date range:        (no readings)")
	}

	top := idx.TopInverters(5)
	if len(top) == 0 {
		return
	}
	fmt.Fprintln(w, "  Top inverters:")
	for _, e := range top {
		fmt.Fprintf(w, "    %4d  %6d predictions\n", e.InverterID, e.PredictionCount)
	}
}
