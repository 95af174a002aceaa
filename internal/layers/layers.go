// Package layers implements the Layer Assigner C11: maps a loss value to
// one of seven strata of convergence depth, either by fixed absolute
// bounds or by percentile rank within an accumulated corpus.
package layers

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// bounds are the seven fixed absolute ranges, half-open except the last.
var bounds = [7][2]float64{
	{0.00, 0.05},
	{0.05, 0.15},
	{0.15, 0.30},
	{0.30, 0.45},
	{0.45, 0.60},
	{0.60, 0.75},
	{0.75, 1.00},
}

// Assignment is the layer (1..7) a loss was placed into, with a
// confidence that falls off linearly from the range midpoint.
type Assignment struct {
	Layer      int
	Confidence float64
	Method     string // "absolute" | "relative"
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

func confidenceInRange(l, lo, hi float64) float64 {
	mid := (lo + hi) / 2
	halfWidth := (hi - lo) / 2
	if halfWidth == 0 {
		return 1.0
	}
	distFromMid := math.Abs(l - mid)
	return clamp01(1 - distFromMid/halfWidth)
}

// Absolute maps l to a layer using the fixed bounds.
func Absolute(l float64) Assignment {
	l = clamp01(l)
	for i, b := range bounds {
		upperInclusive := i == len(bounds)-1
		if l >= b[0] && (l < b[1] || (upperInclusive && l <= b[1])) {
			return Assignment{Layer: i + 1, Confidence: confidenceInRange(l, b[0], b[1]), Method: "absolute"}
		}
	}
	// l > 1.0 after clamp01 cannot happen, but guard anyway.
	last := bounds[len(bounds)-1]
	return Assignment{Layer: len(bounds), Confidence: confidenceInRange(l, last[0], last[1]), Method: "absolute"}
}

// DefaultMinCorpusSize is the minimum corpus size before Relative is used
// instead of falling back to Absolute.
const DefaultMinCorpusSize = 20

// Relative places l at its percentile within corpus and maps percentile to
// a layer via ceil(p*7) clamped to [1,7]. Falls back to Absolute when
// corpus is smaller than minCorpusSize.
func Relative(l float64, corpus []float64, minCorpusSize int) Assignment {
	if minCorpusSize <= 0 {
		minCorpusSize = DefaultMinCorpusSize
	}
	if len(corpus) < minCorpusSize {
		return Absolute(l)
	}

	sorted := make([]float64, len(corpus))
	copy(sorted, corpus)
	sort.Float64s(sorted)

	percentile := stat.CDF(l, stat.Empirical, sorted, nil)

	layer := int(math.Ceil(percentile * 7))
	if layer < 1 {
		layer = 1
	}
	if layer > 7 {
		layer = 7
	}

	lo, hi := float64(layer-1)/7, float64(layer)/7
	confidence := confidenceInRange(percentile, lo, hi)
	return Assignment{Layer: layer, Confidence: confidence, Method: "relative"}
}

// Assigner accumulates a loss corpus and assigns layers against it,
// falling back to Absolute until the corpus crosses MinCorpusSize.
type Assigner struct {
	mu            sync.Mutex
	corpus        []float64
	minCorpusSize int
}

// NewAssigner returns an Assigner with an empty corpus.
func NewAssigner(minCorpusSize int) *Assigner {
	if minCorpusSize <= 0 {
		minCorpusSize = DefaultMinCorpusSize
	}
	return &Assigner{minCorpusSize: minCorpusSize}
}

// AddToCorpus records l as part of the reference corpus for future
// Relative assignments.
func (a *Assigner) AddToCorpus(l float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.corpus = append(a.corpus, l)
}

// Assign picks Relative once the corpus threshold is reached (and
// useCorpus is true), else falls back to Absolute.
func (a *Assigner) Assign(l float64, useCorpus bool) Assignment {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !useCorpus {
		return Absolute(l)
	}
	return Relative(l, a.corpus, a.minCorpusSize)
}

// CorpusSize reports the current corpus length, mostly for tests and
// diagnostics.
func (a *Assigner) CorpusSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.corpus)
}

// CorpusMean is a small diagnostic helper built on gonum/stat, exercised
// by TestCorpusMean.
func CorpusMean(corpus []float64) float64 {
	if len(corpus) == 0 {
		return 0
	}
	return stat.Mean(corpus, nil)
}
