package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// calibration is a fixed (loss, expected-layer) list preserved across
// versions, per spec.md §4.11's regression requirement.
var calibration = []struct {
	loss     float64
	expected int
}{
	{0.0, 1},
	{0.02, 1},
	{0.05, 2},
	{0.10, 2},
	{0.15, 3},
	{0.29, 3},
	{0.30, 4},
	{0.44, 4},
	{0.45, 5},
	{0.59, 5},
	{0.60, 6},
	{0.74, 6},
	{0.75, 7},
	{1.00, 7},
}

func TestAbsoluteCalibrationRegression(t *testing.T) {
	for _, c := range calibration {
		got := Absolute(c.loss)
		assert.Equal(t, c.expected, got.Layer, "loss=%.2f", c.loss)
	}
}

func TestAbsoluteConfidenceIsHighestAtMidpoint(t *testing.T) {
	mid := Absolute(0.025) // midpoint of [0.00, 0.05)
	edge := Absolute(0.001)
	assert.GreaterOrEqual(t, mid.Confidence, edge.Confidence)
}

func TestRelativeFallsBackToAbsoluteBelowMinCorpusSize(t *testing.T) {
	small := []float64{0.1, 0.2, 0.3}
	got := Relative(0.2, small, 20)
	assert.Equal(t, "absolute", got.Method)
}

func TestRelativeUsesPercentileAboveMinCorpusSize(t *testing.T) {
	corpus := make([]float64, 30)
	for i := range corpus {
		corpus[i] = float64(i) / 30.0
	}
	got := Relative(0.0, corpus, 20)
	assert.Equal(t, "relative", got.Method)
	assert.Equal(t, 1, got.Layer)

	gotHigh := Relative(0.99, corpus, 20)
	assert.Equal(t, 7, gotHigh.Layer)
}

func TestAssignerUsesAbsoluteUntilCorpusThreshold(t *testing.T) {
	a := NewAssigner(5)
	for i := 0; i < 4; i++ {
		a.AddToCorpus(float64(i) / 10)
	}
	assign := a.Assign(0.2, true)
	assert.Equal(t, "absolute", assign.Method)

	a.AddToCorpus(0.5)
	assign = a.Assign(0.2, true)
	assert.Equal(t, "relative", assign.Method)
}

func TestAssignerUseCorpusFalseAlwaysAbsolute(t *testing.T) {
	a := NewAssigner(1)
	a.AddToCorpus(0.1)
	a.AddToCorpus(0.2)
	assign := a.Assign(0.2, false)
	assert.Equal(t, "absolute", assign.Method)
}

func TestCorpusMean(t *testing.T) {
	assert.Equal(t, 0.0, CorpusMean(nil))
	assert.InDelta(t, 0.2, CorpusMean([]float64{0.1, 0.2, 0.3}), 0.0001)
}
