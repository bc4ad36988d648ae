// predict serves one forecast from the command line using the persisted
// prediction index, the configured reading store and the model artifacts.
//
// Usage:
//
//	predict -plant 1 -inverter 3 -timestamp 2020-05-20T12:00:00
//	predict -plant 2 -list
//	predict -plant 2 -inverter 5 -list
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"solar_forecast/internal/app"
	"solar_forecast/internal/config"
	"solar_forecast/internal/inference"
	"solar_forecast/internal/logger"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "path to YAML configuration file")
	plant := flag.Int("plant", 1, "plant id (1 or 2)")
	inverter := flag.Int("inverter", 0, "inverter id (SOURCE_KEY)")
	timestamp := flag.String("timestamp", "", "timestamp to forecast, e.g. 2020-05-20T12:00:00")
	list := flag.Bool("list", false, "list inverters, or eligible timestamps when -inverter is set")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to initialize")
		os.Exit(1)
	}

	code := run(ctx, os.Stdout, os.Stderr, a.Executor, *plant, *inverter, *timestamp, *list)
	if err := a.WriteMetrics(); err != nil {
		log.WithError(err).Warn("Failed to write metrics")
	}
	a.Close()
	os.Exit(code)
}

func run(ctx context.Context, stdout, stderr io.Writer, exec *inference.Executor, plant, inverter int, timestamp string, list bool) int {
	switch {
	case list && inverter == 0:
		ids, err := exec.Inverters(ctx, plant)
		if err != nil {
			return report(stderr, err)
		}
		for _, id := range ids {
			fmt.Fprintln(stdout, id)
		}
		return 0

	case list:
		ts, err := exec.EligibleTimestamps(ctx, plant, inverter)
		if err != nil {
			return report(stderr, err)
		}
		for _, s := range ts {
			fmt.Fprintln(stdout, s)
		}
		return 0
	}

	res, err := exec.Predict(ctx, inference.Request{Plant: plant, Inverter: inverter, Timestamp: timestamp})
	if err != nil {
		return report(stderr, err)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// report prints a failed request and returns the exit code: 2 when the
// caller may retry later, 1 otherwise.
func report(w io.Writer, err error) int {
	var e *inference.Error
	if !errors.As(err, &e) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(w, "Error: %v\n", e)
	if len(e.Alternatives) > 0 {
		ids := make([]string, len(e.Alternatives))
		for i, id := range e.Alternatives {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "Available inverters: %s\n", strings.Join(ids, ", "))
	}
	if e.Retriable() {
		return 2
	}
	return 1
}
