package inference

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "InvalidInput", InvalidInput.String())
	assert.Equal(t, "NotFound", NotFound.String())
	assert.Equal(t, "PredictionNotAllowed", PredictionNotAllowed.String())
	assert.Equal(t, "InsufficientHistory", InsufficientHistory.String())
	assert.Equal(t, "ModelUnavailable", ModelUnavailable.String())
	assert.Equal(t, "Internal", Internal.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestError_WrapsCauseWithoutExposingIt(t *testing.T) {
	cause := errors.New("open /secret/path: permission denied")
	err := newError(Internal, cause, "prediction index of %s is unreadable", "Plant1")

	assert.Equal(t, "Internal: prediction index of Plant1 is unreadable", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, err.Retriable())
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("handler: %w", newError(ModelUnavailable, nil, "model x is unavailable"))

	assert.Equal(t, ModelUnavailable, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(0), KindOf(nil))
}
