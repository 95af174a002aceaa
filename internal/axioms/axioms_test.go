package axioms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulcore/mediator/internal/fixedpoint"
	"github.com/soulcore/mediator/internal/loss"
)

func TestMinePatternsFindsValueStatements(t *testing.T) {
	phrases := MinePatterns("Honesty is important. We should always tell the truth. Clarity matters.")
	assert.NotEmpty(t, phrases)
	joined := ""
	for _, p := range phrases {
		joined += p + "|"
	}
	assert.Contains(t, joined, "honesty is important")
}

func TestClusterPhrasesGroupsOverlappingPhrases(t *testing.T) {
	phrases := []string{
		"honesty is important",
		"honesty is very important",
		"speed matters a lot",
	}
	clusters := ClusterPhrases(phrases)
	assert.LessOrEqual(t, len(clusters), 2)
}

func TestDiscoverFiltersByMinOccurrencesAndSortsByLoss(t *testing.T) {
	computer := loss.NewComputer(nil, zeroMetric{}, nil)
	detector := fixedpoint.New(computer, nil)

	records := []Record{
		{ResponseText: "honesty is important. honesty is important. honesty is important."},
		{ResponseText: "speed matters"},
	}

	report, err := Discover(context.Background(), detector, records, 2, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.RecordsProcessed, 2)
	// "speed matters" occurs once, below minOccurrences 2, and is dropped
	require.Len(t, report.Candidates, 1)
	for i := 1; i < len(report.Candidates); i++ {
		assert.LessOrEqual(t, report.Candidates[i-1].InitialLoss, report.Candidates[i].InitialLoss)
	}
}

func TestDiscoverFromTextWrapsRawStrings(t *testing.T) {
	computer := loss.NewComputer(nil, zeroMetric{}, nil)
	detector := fixedpoint.New(computer, nil)

	report, err := DiscoverFromText(context.Background(), detector, []string{"clarity matters"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RecordsProcessed)
}

type zeroMetric struct{}

func (zeroMetric) Name() string { return "zero" }
func (zeroMetric) Distance(ctx context.Context, a, b string) (float64, error) {
	return 0, nil
}
