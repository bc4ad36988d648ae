package tsindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"solar_forecast/internal/model"
)

// ErrIndexNotFound is returned when no index file exists for a plant.
var ErrIndexNotFound = errors.New("prediction index not found")

// FileStore persists one JSON index file per plant inside Dir.
type FileStore struct {
	Dir string
}

// Path returns the index file location of plant.
func (fs FileStore) Path(plant model.Plant) string {
	return filepath.Join(fs.Dir, fmt.Sprintf("prediction_timestamps_plant_%d.json", int(plant)))
}

// Save writes idx atomically, replacing any previous index of the plant.
func (fs FileStore) Save(idx *Index) error {
	plant, err := model.ParsePlant(idx.Plant)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := os.MkdirAll(fs.Dir, 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}

	path := fs.Path(plant)
	tmp, err := os.CreateTemp(fs.Dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}

// Load reads and validates the index of plant. A missing file yields
// ErrIndexNotFound.
func (fs FileStore) Load(plant model.Plant) (*Index, error) {
	data, err := os.ReadFile(fs.Path(plant))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", plant, ErrIndexNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("malformed index %s: %w", fs.Path(plant), err)
	}
	if idx.Inverters == nil {
		idx.Inverters = map[string]*InverterEntry{}
	}
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("malformed index %s: %w", fs.Path(plant), err)
	}
	if idx.Plant != int(plant) {
		return nil, fmt.Errorf("malformed index %s: holds plant %d", fs.Path(plant), idx.Plant)
	}
	return &idx, nil
}
