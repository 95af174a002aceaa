package principles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHasSixAxesAtNeutral(t *testing.T) {
	c := New()
	axes := c.Axes()
	assert.Len(t, axes, 6)
	for _, a := range axes {
		assert.Equal(t, 0.5, a.Value)
		assert.Equal(t, 0.5, a.Confidence)
	}
}

func TestModifyUnknownAxisReturnsFalse(t *testing.T) {
	c := New()
	assert.False(t, c.Modify("not-an-axis", 0.1, nil, 0))
}

func TestModifyClampsToUnitInterval(t *testing.T) {
	c := New()
	assert.True(t, c.Modify("minimalism", 10, nil, 10))
	for _, a := range c.Axes() {
		if a.Name == "minimalism" {
			assert.Equal(t, 1.0, a.Value)
			assert.Equal(t, 1.0, a.Confidence)
		}
	}

	abs := -5.0
	assert.True(t, c.Modify("minimalism", 0, &abs, -5))
	for _, a := range c.Axes() {
		if a.Name == "minimalism" {
			assert.Equal(t, 0.0, a.Value)
			assert.Equal(t, 0.0, a.Confidence)
		}
	}
}

func TestToPromptSectionIsDeterministic(t *testing.T) {
	c := New()
	a := c.ToPromptSection()
	b := c.ToPromptSection()
	assert.Equal(t, a, b)
	assert.True(t, strings.Contains(a, "minimalism"))
}

func TestMatchKeywordsDedupAndCap(t *testing.T) {
	matched := MatchKeywords("please delete, remove, and simplify this, but also explore and learn and be careful and honest")
	assert.LessOrEqual(t, len(matched), 3)
	// no duplicates
	seen := map[string]bool{}
	for _, m := range matched {
		assert.False(t, seen[m])
		seen[m] = true
	}
}

func TestMatchKeywordsNoMatch(t *testing.T) {
	assert.Empty(t, MatchKeywords("the quick brown fox"))
}
