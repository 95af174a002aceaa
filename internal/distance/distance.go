// Package distance implements the pluggable semantic-distance metric C4:
// d(a, b) in [0,1], 0 meaning identical, with a canonical fallback chain
// and a pure-Jaccard fallback implementation.
package distance

import (
	"context"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
	"gonum.org/v1/gonum/floats"
)

// Metric computes a bounded, symmetric-up-to-backing distance between two
// texts and names itself for audit/debug purposes.
type Metric interface {
	Distance(ctx context.Context, a, b string) (float64, error)
	Name() string
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// EntailmentScorer computes bidirectional NLI entailment probabilities;
// implementations are expected to call out to a model. Optional — when nil,
// the canonical metric skips straight to the F1 tier.
type EntailmentScorer interface {
	Entail(ctx context.Context, premise, hypothesis string) (float64, error)
}

// Embedder computes a dense embedding for a text. Optional. Canonical only
// reaches the cosine tier after the token-F1 tier, and that tier always
// yields a value, so Canonical.Distance never calls the Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Canonical is the reference chain: entailment -> token F1 -> embedding
// cosine -> Jaccard, per spec.md §4.4. Entailment falls through to token F1
// on error or when no scorer is set. Token F1 needs no capability and
// always answers, so the cosine and Jaccard tiers are not reached.
type Canonical struct {
	Entailment EntailmentScorer
	Embedding  Embedder
}

func (c *Canonical) Name() string { return "canonical" }

func (c *Canonical) Distance(ctx context.Context, a, b string) (float64, error) {
	if c.Entailment != nil {
		if d, ok := c.tryEntailment(ctx, a, b); ok {
			return d, nil
		}
	}
	if d, ok := tryF1(a, b); ok {
		return d, nil
	}
	if c.Embedding != nil {
		if d, ok := c.tryCosine(ctx, a, b); ok {
			return d, nil
		}
	}
	return Jaccard(a, b), nil
}

func (c *Canonical) tryEntailment(ctx context.Context, a, b string) (float64, bool) {
	pAB, err1 := c.Entailment.Entail(ctx, a, b)
	if err1 != nil {
		return 0, false
	}
	pBA, err2 := c.Entailment.Entail(ctx, b, a)
	if err2 != nil {
		return 0, false
	}
	// geometric mean of the two directional entailment probabilities
	mean := geometricMean(clamp01(pAB), clamp01(pBA))
	return clamp01(1 - mean), true
}

func geometricMean(x, y float64) float64 {
	if x < 0 || y < 0 {
		return 0
	}
	return math.Sqrt(x * y)
}

func tryF1(a, b string) (float64, bool) {
	toksA := tokenize(a)
	toksB := tokenize(b)
	if len(toksA) == 0 && len(toksB) == 0 {
		return 0, true
	}
	if len(toksA) == 0 || len(toksB) == 0 {
		return 1, true
	}
	f1 := tokenF1(toksA, toksB)
	return clamp01(1 - f1), true
}

func tokenF1(a, b []string) float64 {
	countsA := counts(a)
	countsB := counts(b)

	overlap := 0
	for tok, ca := range countsA {
		cb := countsB[tok]
		if cb < ca {
			overlap += cb
		} else {
			overlap += ca
		}
	}
	if overlap == 0 {
		return 0
	}
	precision := float64(overlap) / float64(len(b))
	recall := float64(overlap) / float64(len(a))
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func counts(toks []string) map[string]int {
	m := make(map[string]int, len(toks))
	for _, t := range toks {
		m[t]++
	}
	return m
}

func (c *Canonical) tryCosine(ctx context.Context, a, b string) (float64, bool) {
	va, err := c.Embedding.Embed(ctx, a)
	if err != nil || len(va) == 0 {
		return 0, false
	}
	vb, err := c.Embedding.Embed(ctx, b)
	if err != nil || len(vb) != len(va) {
		return 0, false
	}
	normA := floats.Norm(va, 2)
	normB := floats.Norm(vb, 2)
	if normA == 0 || normB == 0 {
		return 0, false
	}
	cos := floats.Dot(va, vb) / (normA * normB)
	return clamp01(1 - cos), true
}

// Jaccard is the pure, dependency-free fallback: 1 - Jaccard similarity
// over whitespace-tokenized words.
func Jaccard(a, b string) float64 {
	setA := toSet(tokenize(a))
	setB := toSet(tokenize(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter, union := 0, 0
	seen := make(map[string]bool, len(setA)+len(setB))
	for w := range setA {
		seen[w] = true
	}
	for w := range setB {
		seen[w] = true
	}
	union = len(seen)
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	if union == 0 {
		return 0
	}
	return clamp01(1 - float64(inter)/float64(union))
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func toSet(toks []string) map[string]bool {
	m := make(map[string]bool, len(toks))
	for _, t := range toks {
		m[t] = true
	}
	return m
}

// Lexical is a standalone levenshtein-ratio based metric, not part of the
// Canonical chain: two texts that differ by
// only a handful of edits are close even when they share few whole-word
// tokens (typo-level paraphrase, punctuation drift).
type Lexical struct{}

func (Lexical) Name() string { return "lexical" }

func (Lexical) Distance(_ context.Context, a, b string) (float64, error) {
	if a == "" && b == "" {
		return 0, nil
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0, nil
	}
	return clamp01(float64(dist) / float64(maxLen)), nil
}
