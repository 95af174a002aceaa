package fixedpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulcore/mediator/internal/distance"
	"github.com/soulcore/mediator/internal/loss"
)

func TestDetectAboveThresholdIsNotFixedPoint(t *testing.T) {
	computer := loss.NewComputer(nil, disjointMetric{}, nil)
	d := New(computer, nil)

	res, err := d.Detect(context.Background(), "anything", DefaultThreshold, DefaultStabilityThreshold, DefaultMaxIterations)
	require.NoError(t, err)
	assert.False(t, res.IsFixedPoint)
	assert.Equal(t, 1.0, res.Stability)
	assert.Equal(t, 1, res.Iterations)
}

func TestDetectBelowThresholdAndStableIsFixedPoint(t *testing.T) {
	computer := loss.NewComputer(nil, zeroMetric{}, nil)
	d := New(computer, nil)

	res, err := d.Detect(context.Background(), "stable content", DefaultThreshold, DefaultStabilityThreshold, DefaultMaxIterations)
	require.NoError(t, err)
	assert.True(t, res.IsFixedPoint)
	assert.Equal(t, 0.0, res.Stability)
	assert.Len(t, res.IterationLoss, DefaultMaxIterations)
}

func TestExtractAxiomsFiltersAndSortsByLoss(t *testing.T) {
	computer := loss.NewComputer(nil, zeroMetric{}, nil)
	d := New(computer, nil)

	corpus := []string{"a", "b", "c"}
	candidates, err := d.ExtractAxioms(context.Background(), corpus, 2, DefaultThreshold, DefaultStabilityThreshold, DefaultMaxIterations)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(candidates), 2)
}

// zeroMetric always reports zero distance: every content is its own
// fixed point.
type zeroMetric struct{}

func (zeroMetric) Name() string { return "zero" }
func (zeroMetric) Distance(ctx context.Context, a, b string) (float64, error) {
	return 0, nil
}

// disjointMetric always reports maximal distance.
type disjointMetric struct{}

func (disjointMetric) Name() string { return "disjoint" }
func (disjointMetric) Distance(ctx context.Context, a, b string) (float64, error) {
	return 1, nil
}

var _ distance.Metric = zeroMetric{}
var _ distance.Metric = disjointMetric{}
