package predictor

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Layer represents a fully-connected neural network layer.
type Layer struct {
	Weights [][]float64 `json:"weights"` // [out][in]
	Biases  []float64   `json:"biases"`
}

// Network is a feedforward neural network with ReLU hidden layers and linear output.
// Forward keeps no state, so a loaded network can be shared between goroutines.
type Network struct {
	Layers []Layer `json:"layers"`
}

// NewNetwork creates a network with He initialization.
// sizes specifies the number of neurons in each layer, e.g. [216, 32, 16, 1].
func NewNetwork(sizes []int, rng *rand.Rand) *Network {
	n := &Network{
		Layers: make([]Layer, len(sizes)-1),
	}
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]
		stddev := math.Sqrt(2.0 / float64(in)) // He init
		layer := Layer{
			Weights: makeMatrix(out, in),
			Biases:  make([]float64, out),
		}
		for j := 0; j < out; j++ {
			for k := 0; k < in; k++ {
				layer.Weights[j][k] = rng.NormFloat64() * stddev
			}
		}
		n.Layers[i] = layer
	}
	return n
}

// InputSize is the width of the first layer's input.
func (n *Network) InputSize() int {
	if len(n.Layers) == 0 || len(n.Layers[0].Weights) == 0 {
		return 0
	}
	return len(n.Layers[0].Weights[0])
}

// OutputSize is the width of the last layer's output.
func (n *Network) OutputSize() int {
	if len(n.Layers) == 0 {
		return 0
	}
	return len(n.Layers[len(n.Layers)-1].Weights)
}

// Validate checks that consecutive layer shapes line up.
func (n *Network) Validate() error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("network has no layers")
	}
	in := n.InputSize()
	for i, l := range n.Layers {
		if len(l.Weights) == 0 {
			return fmt.Errorf("layer %d has no neurons", i)
		}
		if len(l.Biases) != len(l.Weights) {
			return fmt.Errorf("layer %d has %d biases for %d neurons", i, len(l.Biases), len(l.Weights))
		}
		for j, row := range l.Weights {
			if len(row) != in {
				return fmt.Errorf("layer %d neuron %d has %d weights, expected %d", i, j, len(row), in)
			}
		}
		in = len(l.Weights)
	}
	return nil
}

// Forward computes the network output.
// Hidden layers use ReLU; the output layer is linear.
func (n *Network) Forward(input []float64) []float64 {
	x := input
	for i := range n.Layers {
		l := &n.Layers[i]
		y := make([]float64, len(l.Weights))
		for j, weights := range l.Weights {
			sum := l.Biases[j]
			for k, w := range weights {
				sum += w * x[k]
			}
			y[j] = sum
		}

		// ReLU for all layers except the last (linear output).
		if i < len(n.Layers)-1 {
			for j := range y {
				if y[j] < 0 {
					y[j] = 0
				}
			}
		}
		x = y
	}
	return x
}

func makeMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
