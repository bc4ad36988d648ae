// Package inference serves single-step forecasts for eligible timestamps by
// rebuilding the training feature pipeline at request time.
package inference

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solar_forecast/internal/logger"
	"solar_forecast/internal/metrics"
	"solar_forecast/internal/model"
	"solar_forecast/internal/store"
	"solar_forecast/internal/tsindex"
	"solar_forecast/internal/window"
)

// DefaultLookback yields window.DefaultLength readings at a 15-minute cadence.
const DefaultLookback = 6 * time.Hour

// StatusSuccess is the status of every returned Result.
const StatusSuccess = "success"

type Request struct {
	Plant     int    `json:"plant"`
	Inverter  int    `json:"inverter"`
	Timestamp string `json:"timestamp"`
}

type Result struct {
	Plant               int     `json:"plant"`
	Inverter            int     `json:"inverter"`
	PredictionTimestamp string  `json:"prediction_timestamp"`
	PredictedValue      float64 `json:"predicted_value"`
	ModelUsed           string  `json:"model_used"`
	SequenceLength      int     `json:"sequence_length"`
	Status              string  `json:"status"`
}

// Executor answers forecast requests. Every failure is returned as *Error.
type Executor struct {
	Readings store.RangeReader
	Scalers  *ScalerManager
	Models   *ModelCache
	Indexes  *IndexCache

	SequenceLength int
	Lookback       time.Duration

	Log     *logger.Entry
	Metrics *metrics.Metrics
}

func (e *Executor) sequenceLength() int {
	if e.SequenceLength > 0 {
		return e.SequenceLength
	}
	return window.DefaultLength
}

func (e *Executor) lookback() time.Duration {
	if e.Lookback > 0 {
		return e.Lookback
	}
	return DefaultLookback
}

func (e *Executor) log() *logger.Entry {
	if e.Log != nil {
		return e.Log
	}
	return logger.GetLogger().WithComponent("inference")
}

// Predict forecasts the target of one inverter at req.Timestamp.
func (e *Executor) Predict(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	entry := e.log().WithFields(logger.Fields{
		"request_id": uuid.New().String(),
		"plant":      req.Plant,
		"inverter":   req.Inverter,
		"timestamp":  req.Timestamp,
	})

	res, err := e.predict(ctx, req)
	outcome := StatusSuccess
	if err != nil {
		outcome = KindOf(err).String()
		if KindOf(err) == Internal {
			entry.WithError(errors.Unwrap(err)).Error(err.Error())
		} else {
			entry.WithFields(logger.Fields{"kind": outcome}).Warn(err.Error())
		}
	} else {
		entry.WithFields(logger.Fields{
			"predicted_value": res.PredictedValue,
			"model":           res.ModelUsed,
			"duration_ms":     float64(time.Since(start).Nanoseconds()) / 1e6,
		}).Info("prediction served")
	}
	e.Metrics.ObservePrediction(req.Plant, outcome, time.Since(start))
	return res, err
}

func (e *Executor) predict(ctx context.Context, req Request) (Result, error) {
	plant, err := model.ParsePlant(req.Plant)
	if err != nil {
		return Result{}, newError(InvalidInput, err, "plant must be one of %v, got %d", plantIDs(), req.Plant)
	}
	profile, _ := plant.Profile()
	ts, err := model.ParseTimestamp(req.Timestamp)
	if err != nil {
		return Result{}, newError(InvalidInput, err, "invalid timestamp %q, expected ISO-8601", req.Timestamp)
	}
	if ts.Nanosecond() != 0 {
		return Result{}, newError(InvalidInput, nil, "timestamp %q has fractional seconds", req.Timestamp)
	}
	canonical := model.FormatTimestamp(ts)
	length := e.sequenceLength()

	idx, err := e.index(ctx, plant)
	if err != nil {
		return Result{}, err
	}
	if idx.SequenceLength != length {
		return Result{}, newError(Internal, nil,
			"prediction index of %s was built for sequence length %d, executor uses %d; rebuild the index",
			plant, idx.SequenceLength, length)
	}
	if _, ok := idx.Entry(req.Inverter); !ok {
		nf := newError(NotFound, nil, "inverter %d not found in prediction index of %s", req.Inverter, plant)
		nf.Alternatives = idx.InverterIDs()
		return Result{}, nf
	}
	if !idx.Allows(req.Inverter, canonical) {
		return Result{}, newError(PredictionNotAllowed, nil,
			"timestamp %s is not eligible for prediction for inverter %d; query eligible timestamps first",
			canonical, req.Inverter)
	}

	readings, err := e.Readings.ReadingsInRange(ctx, plant, req.Inverter, ts.Add(-e.lookback()), ts)
	if err != nil {
		return Result{}, newError(Internal, err, "reading history failed")
	}
	var usable []model.Reading
	for _, r := range readings {
		if r.Complete(profile.Features) {
			usable = append(usable, r)
		}
	}
	if len(usable) < length {
		ih := newError(InsufficientHistory, nil,
			"need %d readings in the %s before %s, got %d", length, e.lookback(), canonical, len(usable))
		ih.Found = len(usable)
		return Result{}, ih
	}
	usable = usable[len(usable)-length:]

	scalers, err := e.Scalers.GetOrCreate(ctx, plant)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, newError(Internal, err, "request cancelled")
		}
		return Result{}, newError(Internal, err, "scalers for %s are unavailable", plant)
	}
	scaled, err := scalers.TransformWindow(usable)
	if err != nil {
		return Result{}, newError(Internal, err, "scaling input window failed")
	}

	m, err := e.Models.GetOrCreate(ctx, profile.ModelID)
	if err != nil {
		return Result{}, newError(ModelUnavailable, err, "model %s is unavailable", profile.ModelID)
	}
	if m.SequenceLength() != length || m.FeatureCount() != len(scalers.Features) {
		return Result{}, newError(ModelUnavailable, nil,
			"model %s expects a (%d, %d) window, pipeline builds (%d, %d)",
			profile.ModelID, m.SequenceLength(), m.FeatureCount(), length, len(scalers.Features))
	}

	out, err := m.Predict(scaled)
	if err != nil {
		return Result{}, newError(Internal, err, "model evaluation failed")
	}

	value := scalers.InverseTarget(out)
	if value <= 0 {
		value = 0
	}

	return Result{
		Plant:               int(plant),
		Inverter:            req.Inverter,
		PredictionTimestamp: canonical,
		PredictedValue:      decimal.NewFromFloat(value).Round(2).InexactFloat64(),
		ModelUsed:           profile.ModelID,
		SequenceLength:      length,
		Status:              StatusSuccess,
	}, nil
}

func (e *Executor) index(ctx context.Context, plant model.Plant) (*tsindex.Index, error) {
	idx, err := e.Indexes.GetOrCreate(ctx, plant)
	if errors.Is(err, tsindex.ErrIndexNotFound) {
		return nil, newError(NotFound, err, "no prediction index for %s; build it first", plant)
	}
	if err != nil {
		return nil, newError(Internal, err, "prediction index of %s is unreadable", plant)
	}
	return idx, nil
}

// EligibleTimestamps returns the prediction timestamps of one inverter.
func (e *Executor) EligibleTimestamps(ctx context.Context, plant, inverter int) ([]string, error) {
	p, err := model.ParsePlant(plant)
	if err != nil {
		return nil, newError(InvalidInput, err, "plant must be one of %v, got %d", plantIDs(), plant)
	}
	idx, err := e.index(ctx, p)
	if err != nil {
		return nil, err
	}
	entry, ok := idx.Entry(inverter)
	if !ok {
		nf := newError(NotFound, nil, "inverter %d not found in prediction index of %s", inverter, p)
		nf.Alternatives = idx.InverterIDs()
		return nil, nf
	}
	out := make([]string, len(entry.Timestamps))
	copy(out, entry.Timestamps)
	return out, nil
}

// Inverters returns the inverter ids present in a plant's index.
func (e *Executor) Inverters(ctx context.Context, plant int) ([]int, error) {
	p, err := model.ParsePlant(plant)
	if err != nil {
		return nil, newError(InvalidInput, err, "plant must be one of %v, got %d", plantIDs(), plant)
	}
	idx, err := e.index(ctx, p)
	if err != nil {
		return nil, err
	}
	return idx.InverterIDs(), nil
}

func plantIDs() []int {
	var ids []int
	for _, p := range model.Plants() {
		ids = append(ids, int(p))
	}
	return ids
}
