package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// ErrModelNotFound is returned when no artifact backs a model id.
var ErrModelNotFound = errors.New("model artifact not found")

// Artifact kinds.
const (
	KindDense = "dense"
	KindLSTM  = "lstm"
)

// Model turns one scaled (L, F) window into a scaled scalar forecast.
type Model interface {
	Predict(window [][]float64) (float64, error)
	SequenceLength() int
	FeatureCount() int
}

// Artifact is the JSON-serializable trained model.
type Artifact struct {
	ModelID        string     `json:"model_id"`
	Kind           string     `json:"kind"`
	SequenceLength int        `json:"sequence_length"`
	FeatureCount   int        `json:"feature_count"`
	LSTM           *LSTMLayer `json:"lstm,omitempty"`
	Network        *Network   `json:"network"`
}

// SequenceModel evaluates a loaded artifact. It is read-only after load.
type SequenceModel struct {
	art Artifact
}

// LoadModel parses and validates an artifact.
func LoadModel(data []byte) (*SequenceModel, error) {
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decoding model artifact: %w", err)
	}
	if err := art.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact %q: %w", art.ModelID, err)
	}
	return &SequenceModel{art: art}, nil
}

// LoadModelFile reads <dir>/<id>.json.
func LoadModelFile(dir, id string) (*SequenceModel, error) {
	path := filepath.Join(dir, id+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading model %s: %w", path, err)
	}
	return LoadModel(data)
}

// Validate checks the declared window shape against the weights.
func (a *Artifact) Validate() error {
	if a.SequenceLength <= 0 {
		return fmt.Errorf("sequence_length must be positive, got %d", a.SequenceLength)
	}
	if a.FeatureCount <= 0 {
		return fmt.Errorf("feature_count must be positive, got %d", a.FeatureCount)
	}
	if a.Network == nil {
		return fmt.Errorf("missing network")
	}
	if err := a.Network.Validate(); err != nil {
		return err
	}
	if a.Network.OutputSize() != 1 {
		return fmt.Errorf("network must have 1 output, got %d", a.Network.OutputSize())
	}

	switch a.Kind {
	case KindDense:
		if want := a.SequenceLength * a.FeatureCount; a.Network.InputSize() != want {
			return fmt.Errorf("dense network expects %d inputs, window provides %d", a.Network.InputSize(), want)
		}
	case KindLSTM:
		if a.LSTM == nil {
			return fmt.Errorf("missing lstm layer")
		}
		if err := a.LSTM.Validate(); err != nil {
			return err
		}
		if a.LSTM.InputSize() != a.FeatureCount {
			return fmt.Errorf("lstm expects %d features, artifact declares %d", a.LSTM.InputSize(), a.FeatureCount)
		}
		if a.Network.InputSize() != a.LSTM.Units {
			return fmt.Errorf("head expects %d inputs, lstm provides %d", a.Network.InputSize(), a.LSTM.Units)
		}
	default:
		return fmt.Errorf("unknown model kind %q", a.Kind)
	}
	return nil
}

func (m *SequenceModel) ID() string          { return m.art.ModelID }
func (m *SequenceModel) SequenceLength() int { return m.art.SequenceLength }
func (m *SequenceModel) FeatureCount() int   { return m.art.FeatureCount }

// Predict evaluates the model on a scaled window.
func (m *SequenceModel) Predict(window [][]float64) (float64, error) {
	if len(window) != m.art.SequenceLength {
		return 0, fmt.Errorf("window has %d steps, model expects %d", len(window), m.art.SequenceLength)
	}
	for i, row := range window {
		if len(row) != m.art.FeatureCount {
			return 0, fmt.Errorf("step %d has %d features, model expects %d", i, len(row), m.art.FeatureCount)
		}
	}

	var input []float64
	switch m.art.Kind {
	case KindLSTM:
		input = m.art.LSTM.Forward(window)
	default:
		input = make([]float64, 0, m.art.SequenceLength*m.art.FeatureCount)
		for _, row := range window {
			input = append(input, row...)
		}
	}

	out := m.art.Network.Forward(input)[0]
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("model produced non-finite output")
	}
	return out, nil
}
