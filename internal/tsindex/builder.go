package tsindex

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"solar_forecast/internal/logger"
	"solar_forecast/internal/metrics"
	"solar_forecast/internal/model"
	"solar_forecast/internal/store"
	"solar_forecast/internal/window"
)

// Builder scans every inverter series of a plant and assembles its index.
type Builder struct {
	SequenceLength int
	// Workers bounds how many inverters are scanned at once.
	Workers int
	// Now stamps generated_at. Defaults to time.Now in UTC.
	Now     func() time.Time
	Log     *logger.Entry
	Metrics *metrics.Metrics
}

type inverterScan struct {
	timestamps InverterTimestamps
	first      time.Time
	last       time.Time
	readings   int
}

// Build reads each inverter series of plant from r and returns the index.
func (b *Builder) Build(ctx context.Context, plant model.Plant, r store.SeriesReader) (*Index, error) {
	length := b.SequenceLength
	if length <= 0 {
		length = window.DefaultLength
	}

	start := time.Now()
	ids, err := r.Inverters(ctx, plant)
	if err != nil {
		return nil, fmt.Errorf("listing inverters of %s: %w", plant, err)
	}

	scans := make([]inverterScan, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if b.Workers > 0 {
		g.SetLimit(b.Workers)
	}
	for i, id := range ids {
		g.Go(func() error {
			series, err := r.Series(gctx, plant, id)
			if err != nil {
				return fmt.Errorf("reading series of inverter %d: %w", id, err)
			}
			scan := inverterScan{
				timestamps: InverterTimestamps{
					InverterID: id,
					Timestamps: window.PredictionTimestamps(series, length),
				},
				readings: len(series),
			}
			if len(series) > 0 {
				scan.first = series[0].Timestamp
				scan.last = series[len(series)-1].Timestamp
			}
			scans[i] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lists := make([]InverterTimestamps, len(scans))
	var span *model.TimeRange
	for i, s := range scans {
		lists[i] = s.timestamps
		if s.readings == 0 {
			continue
		}
		if span == nil {
			span = &model.TimeRange{Start: s.first, End: s.last}
			continue
		}
		if s.first.Before(span.Start) {
			span.Start = s.first
		}
		if s.last.After(span.End) {
			span.End = s.last
		}
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	idx := Assemble(plant, length, now().UTC(), lists, span)

	b.Metrics.SetIndexSize(int(plant), idx.Summary.TotalInverters, idx.Summary.TotalPredictionTimestamps)
	if b.Log != nil {
		logger.LogPerformance(b.Log, "build_index", time.Since(start), logger.Fields{
			"plant":       int(plant),
			"inverters":   idx.Summary.TotalInverters,
			"predictions": idx.Summary.TotalPredictionTimestamps,
		})
	}
	return idx, nil
}
