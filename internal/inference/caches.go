package inference

import (
	"context"
	"fmt"

	"solar_forecast/internal/cache"
	"solar_forecast/internal/model"
	"solar_forecast/internal/predictor"
	"solar_forecast/internal/store"
	"solar_forecast/internal/tsindex"
)

// Cache names used in metrics.
const (
	ScalerCacheName = "scalers"
	ModelCacheName  = "models"
	IndexCacheName  = "indexes"
)

// ScalerManager fits each plant's scalers on first use over the plant's
// full history and keeps them until invalidated. The fit includes readings
// later than any given request, matching how the models were trained.
type ScalerManager struct {
	c *cache.Lazy[model.Plant, *predictor.ScalerSet]
}

func NewScalerManager(history store.HistoryReader, obs cache.Observer) *ScalerManager {
	load := func(ctx context.Context, plant model.Plant) (*predictor.ScalerSet, error) {
		profile, ok := plant.Profile()
		if !ok {
			return nil, fmt.Errorf("unknown plant %d", int(plant))
		}
		readings, err := history.PlantHistory(ctx, plant)
		if err != nil {
			return nil, fmt.Errorf("loading history of %s: %w", plant, err)
		}
		set, err := predictor.FitScalerSet(readings, profile)
		if err != nil {
			return nil, fmt.Errorf("fitting scalers of %s: %w", plant, err)
		}
		return set, nil
	}
	return &ScalerManager{c: cache.New(ScalerCacheName, load, obs)}
}

func (m *ScalerManager) GetOrCreate(ctx context.Context, plant model.Plant) (*predictor.ScalerSet, error) {
	return m.c.GetOrCreate(ctx, plant)
}

func (m *ScalerManager) Invalidate(plant model.Plant)         { m.c.Invalidate(plant) }
func (m *ScalerManager) Reset()                               { m.c.Reset() }
func (m *ScalerManager) State(plant model.Plant) cache.State { return m.c.State(plant) }

// ModelLoader builds a model from its identifier.
type ModelLoader func(id string) (predictor.Model, error)

// DirLoader loads JSON artifacts from dir.
func DirLoader(dir string) ModelLoader {
	return func(id string) (predictor.Model, error) {
		m, err := predictor.LoadModelFile(dir, id)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// ModelCache holds loaded models by id for the process lifetime.
type ModelCache struct {
	c *cache.Lazy[string, predictor.Model]
}

func NewModelCache(load ModelLoader, obs cache.Observer) *ModelCache {
	return &ModelCache{c: cache.New(ModelCacheName, func(_ context.Context, id string) (predictor.Model, error) {
		return load(id)
	}, obs)}
}

func (m *ModelCache) GetOrCreate(ctx context.Context, id string) (predictor.Model, error) {
	return m.c.GetOrCreate(ctx, id)
}

func (m *ModelCache) Invalidate(id string)         { m.c.Invalidate(id) }
func (m *ModelCache) Reset()                       { m.c.Reset() }
func (m *ModelCache) State(id string) cache.State { return m.c.State(id) }
func (m *ModelCache) Len() int                     { return m.c.Len() }

// IndexLoader reads a persisted prediction index. tsindex.FileStore
// implements it.
type IndexLoader interface {
	Load(plant model.Plant) (*tsindex.Index, error)
}

// IndexCache holds each plant's prediction index until it is regenerated.
type IndexCache struct {
	c *cache.Lazy[model.Plant, *tsindex.Index]
}

func NewIndexCache(loader IndexLoader, obs cache.Observer) *IndexCache {
	return &IndexCache{c: cache.New(IndexCacheName, func(_ context.Context, plant model.Plant) (*tsindex.Index, error) {
		return loader.Load(plant)
	}, obs)}
}

func (m *IndexCache) GetOrCreate(ctx context.Context, plant model.Plant) (*tsindex.Index, error) {
	return m.c.GetOrCreate(ctx, plant)
}

// Invalidate drops the cached index of plant, typically after a rebuild.
func (m *IndexCache) Invalidate(plant model.Plant)         { m.c.Invalidate(plant) }
func (m *IndexCache) Reset()                               { m.c.Reset() }
func (m *IndexCache) State(plant model.Plant) cache.State { return m.c.State(plant) }
