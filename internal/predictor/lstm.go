package predictor

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// LSTMLayer is a single recurrent layer with gates laid out as
// input, forget, cell, output along the 4*Units axis.
type LSTMLayer struct {
	Units           int         `json:"units"`
	Kernel          [][]float64 `json:"kernel"`           // [in][4*units]
	RecurrentKernel [][]float64 `json:"recurrent_kernel"` // [units][4*units]
	Bias            []float64   `json:"bias"`             // [4*units]
}

// NewLSTMLayer creates a layer with small random weights and a forget-gate bias of 1.
func NewLSTMLayer(inputs, units int, rng *rand.Rand) *LSTMLayer {
	l := &LSTMLayer{
		Units:           units,
		Kernel:          makeMatrix(inputs, 4*units),
		RecurrentKernel: makeMatrix(units, 4*units),
		Bias:            make([]float64, 4*units),
	}
	scale := math.Sqrt(1.0 / float64(inputs+units))
	for _, m := range [][][]float64{l.Kernel, l.RecurrentKernel} {
		for i := range m {
			for j := range m[i] {
				m[i][j] = rng.NormFloat64() * scale
			}
		}
	}
	for j := units; j < 2*units; j++ {
		l.Bias[j] = 1
	}
	return l
}

// InputSize is the number of features consumed per step.
func (l *LSTMLayer) InputSize() int {
	return len(l.Kernel)
}

// Validate checks weight shapes against Units.
func (l *LSTMLayer) Validate() error {
	if l.Units <= 0 {
		return fmt.Errorf("lstm units must be positive, got %d", l.Units)
	}
	gates := 4 * l.Units
	if len(l.Kernel) == 0 {
		return fmt.Errorf("lstm kernel is empty")
	}
	for i, row := range l.Kernel {
		if len(row) != gates {
			return fmt.Errorf("lstm kernel row %d has %d columns, expected %d", i, len(row), gates)
		}
	}
	if len(l.RecurrentKernel) != l.Units {
		return fmt.Errorf("lstm recurrent kernel has %d rows, expected %d", len(l.RecurrentKernel), l.Units)
	}
	for i, row := range l.RecurrentKernel {
		if len(row) != gates {
			return fmt.Errorf("lstm recurrent kernel row %d has %d columns, expected %d", i, len(row), gates)
		}
	}
	if len(l.Bias) != gates {
		return fmt.Errorf("lstm bias has %d values, expected %d", len(l.Bias), gates)
	}
	return nil
}

// Forward runs the sequence through the layer and returns the final hidden state.
func (l *LSTMLayer) Forward(seq [][]float64) []float64 {
	u := l.Units
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)

	for _, x := range seq {
		copy(z, l.Bias)
		for k, xv := range x {
			if xv == 0 {
				continue
			}
			for j, w := range l.Kernel[k] {
				z[j] += xv * w
			}
		}
		for k, hv := range h {
			if hv == 0 {
				continue
			}
			for j, w := range l.RecurrentKernel[k] {
				z[j] += hv * w
			}
		}

		for j := 0; j < u; j++ {
			ig := sigmoid(z[j])
			fg := sigmoid(z[u+j])
			cand := math.Tanh(z[2*u+j])
			og := sigmoid(z[3*u+j])
			c[j] = fg*c[j] + ig*cand
			h[j] = og * math.Tanh(c[j])
		}
	}
	return h
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
