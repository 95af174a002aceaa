// Package fixedpoint implements the fixed-point detector C10: decides
// whether content is a semantic fixed point under repeated restructure and
// reconstitution, and mines a corpus for fixed-point candidate axioms.
package fixedpoint

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/soulcore/mediator/internal/loss"
)

// Result is the outcome of Detect, per spec.md §3's Fixed-Point Result.
type Result struct {
	IsFixedPoint  bool
	InitialLoss   float64
	Stability     float64
	Iterations    int
	IterationLoss []float64
}

const (
	DefaultThreshold         = 0.05
	DefaultStabilityThreshold = 0.02
	DefaultMaxIterations     = 3
)

// Detector ties a loss.Computer and a Generator together to iterate R∘C
// and test convergence.
type Detector struct {
	Computer  *loss.Computer
	Generator loss.Generator
}

// New wires a Detector from its collaborators.
func New(computer *loss.Computer, generator loss.Generator) *Detector {
	return &Detector{Computer: computer, Generator: generator}
}

// Detect runs the fixed-point test described in spec.md §4.10.
func (d *Detector) Detect(ctx context.Context, content string, threshold, stabilityThreshold float64, maxIterations int) (Result, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if stabilityThreshold <= 0 {
		stabilityThreshold = DefaultStabilityThreshold
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	rec0, err := d.Computer.ComputeLoss(ctx, content, false)
	if err != nil {
		return Result{}, err
	}

	losses := []float64{rec0.Loss}
	if rec0.Loss >= threshold {
		return Result{
			IsFixedPoint:  false,
			InitialLoss:   rec0.Loss,
			Stability:     1.0,
			Iterations:    1,
			IterationLoss: losses,
		}, nil
	}

	current := content
	for i := 1; i < maxIterations; i++ {
		if d.Generator != nil {
			modular, rErr := loss.Restructure(ctx, d.Generator, current)
			if rErr == nil {
				reconstituted, cErr := loss.Reconstitute(ctx, d.Generator, modular)
				if cErr == nil {
					current = reconstituted
				}
			}
		}
		rec, err := d.Computer.ComputeLoss(ctx, current, false)
		if err != nil {
			return Result{}, err
		}
		losses = append(losses, rec.Loss)
	}

	stability := stddev(losses)
	isFixed := stability < stabilityThreshold
	for _, l := range losses {
		if l >= threshold {
			isFixed = false
			break
		}
	}

	return Result{
		IsFixedPoint:  isFixed,
		InitialLoss:   rec0.Loss,
		Stability:     stability,
		Iterations:    len(losses),
		IterationLoss: losses,
	}, nil
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Candidate pairs a corpus item with its detection result, for
// ExtractAxioms.
type Candidate struct {
	Content string
	Result  Result
}

// ExtractAxioms applies Detect to every item in corpus, keeps fixed
// points, sorts ascending by initial loss, and returns the top k.
func (d *Detector) ExtractAxioms(ctx context.Context, corpus []string, k int, threshold, stabilityThreshold float64, maxIterations int) ([]Candidate, error) {
	var candidates []Candidate
	for _, item := range corpus {
		res, err := d.Detect(ctx, item, threshold, stabilityThreshold, maxIterations)
		if err != nil {
			return nil, err
		}
		if res.IsFixedPoint {
			candidates = append(candidates, Candidate{Content: item, Result: res})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Result.InitialLoss < candidates[j].Result.InitialLoss
	})

	if k > 0 && k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}
