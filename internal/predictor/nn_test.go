package predictor

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetwork_ForwardDimensions(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	net := NewNetwork([]int{9, 32, 16, 1}, rng)

	input := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	output := net.Forward(input)

	assert.Len(t, output, 1, "output should have 1 element")
	assert.False(t, math.IsNaN(output[0]), "output should not be NaN")
	assert.Equal(t, 9, net.InputSize())
	assert.Equal(t, 1, net.OutputSize())
	assert.NoError(t, net.Validate())
}

func TestNetwork_ForwardKnownWeights(t *testing.T) {
	net := &Network{Layers: []Layer{
		{Weights: [][]float64{{1, -1}, {-1, 1}}, Biases: []float64{0, 0}},
		{Weights: [][]float64{{2, 3}}, Biases: []float64{0.5}},
	}}

	// Hidden: relu(1-3)=0, relu(-1+3)=2 -> 0*2 + 2*3 + 0.5
	assert.InDelta(t, 6.5, net.Forward([]float64{1, 3})[0], 1e-12)

	// Output layer is linear, so negative values survive.
	net.Layers[1].Biases[0] = -10
	assert.InDelta(t, -4.0, net.Forward([]float64{1, 3})[0], 1e-12)
}

func TestNetwork_SaveLoadRoundtrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	net := NewNetwork([]int{5, 32, 16, 1}, rng)

	input := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	outputBefore := net.Forward(input)[0]

	data, err := json.Marshal(net)
	require.NoError(t, err)

	var loaded Network
	err = json.Unmarshal(data, &loaded)
	require.NoError(t, err)

	outputAfter := loaded.Forward(input)[0]
	assert.Equal(t, outputBefore, outputAfter, "output should be identical after roundtrip")
}

func TestNetwork_Validate(t *testing.T) {
	assert.Error(t, (&Network{}).Validate())

	bad := &Network{Layers: []Layer{
		{Weights: [][]float64{{1, 2}}, Biases: []float64{0}},
		{Weights: [][]float64{{1, 2}}, Biases: []float64{0}},
	}}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer 1")

	missingBias := &Network{Layers: []Layer{
		{Weights: [][]float64{{1}, {2}}, Biases: []float64{0}},
	}}
	assert.Error(t, missingBias.Validate())
}
