package loss

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/soulcore/mediator/internal/distance"
	"github.com/soulcore/mediator/internal/losscache"
)

// Record is the full result of a loss computation, per spec.md §4.6's data
// model: a bounded loss, the metric that produced it, which computation
// path was taken, and whether it came from cache.
type Record struct {
	Loss   float64
	Metric string
	Method string // "llm" or "fallback"
	Cached bool
}

func clampLoss(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Computer ties a Generator, a distance Metric, and a Cache together into
// the reference L(P) = d(P, C(R(P))) pipeline, deduping concurrent
// identical computations with singleflight.
type Computer struct {
	Generator Generator
	Metric    distance.Metric
	Cache     *losscache.Cache

	group singleflight.Group
}

// NewComputer wires a Computer from its three collaborators. cache may be
// nil, in which case every call recomputes.
func NewComputer(g Generator, m distance.Metric, cache *losscache.Cache) *Computer {
	if m == nil {
		m = &distance.Canonical{}
	}
	return &Computer{Generator: g, Metric: m, Cache: cache}
}

// ComputeLoss is the general entry point: L(content) under the "proof" tag,
// used when no more specific scope applies.
func (c *Computer) ComputeLoss(ctx context.Context, content string, useCache bool) (Record, error) {
	return c.computeTagged(ctx, content, "proof", useCache)
}

// NodeLoss scores the self-consistency of a single node's content.
func (c *Computer) NodeLoss(ctx context.Context, content string, useCache bool) (Record, error) {
	return c.computeTagged(ctx, content, "node", useCache)
}

// EdgeLoss scores whether an edge's claimed relation survives restructure
// and reconstitution of its combined source/target text.
func (c *Computer) EdgeLoss(ctx context.Context, sourceText, edgeKind, targetText string, useCache bool) (Record, error) {
	combined := sourceText + "\n--" + edgeKind + "-->\n" + targetText
	return c.computeTagged(ctx, combined, "edge", useCache)
}

// ProofLoss scores a standalone argument or proof text.
func (c *Computer) ProofLoss(ctx context.Context, text string, useCache bool) (Record, error) {
	return c.computeTagged(ctx, text, "proof", useCache)
}

// CoherenceFromLoss converts a loss value to its complementary coherence
// score: coherence = 1 - loss.
func CoherenceFromLoss(l float64) float64 {
	return clampLoss(1 - clampLoss(l))
}

func (c *Computer) computeTagged(ctx context.Context, content, tag string, useCache bool) (Record, error) {
	if useCache && c.Cache != nil {
		if e, ok := c.Cache.Get(content, tag); ok {
			return Record{Loss: e.Loss, Metric: e.Metric, Method: e.Method, Cached: true}, nil
		}
	}

	sfKey := tag + ":" + losscache.Digest(content)
	v, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		return c.computeViaGenerator(ctx, content)
	})
	if err != nil {
		return Record{}, err
	}
	rec := v.(Record)

	if useCache && c.Cache != nil {
		c.Cache.Put(content, tag, losscache.Entry{Loss: rec.Loss, Metric: rec.Metric, Method: rec.Method})
	}
	return rec, nil
}

func (c *Computer) computeViaGenerator(ctx context.Context, content string) (Record, error) {
	if content == "" {
		return Record{Loss: 0, Metric: c.Metric.Name(), Method: "fallback"}, nil
	}

	if c.Generator == nil {
		l := heuristicLoss(content, c.Metric)
		return Record{Loss: l, Metric: c.Metric.Name(), Method: "fallback"}, nil
	}

	modular, err := Restructure(ctx, c.Generator, content)
	if err != nil {
		l := heuristicLoss(content, c.Metric)
		return Record{Loss: l, Metric: c.Metric.Name(), Method: "fallback"}, nil
	}

	reconstituted, err := Reconstitute(ctx, c.Generator, modular)
	if err != nil {
		l := heuristicLoss(content, c.Metric)
		return Record{Loss: l, Metric: c.Metric.Name(), Method: "fallback"}, nil
	}

	l, err := c.Metric.Distance(ctx, content, reconstituted)
	if err != nil {
		l = heuristicLoss(content, c.Metric)
		return Record{Loss: clampLoss(l), Metric: c.Metric.Name(), Method: "fallback"}, nil
	}
	return Record{Loss: clampLoss(l), Metric: c.Metric.Name(), Method: "llm"}, nil
}

// heuristicSimplify produces a cheap, dependency-free "simplification" of
// content: its first and last sentences. Used as the fallback
// reconstitution target when the generator path is unavailable or fails.
func heuristicSimplify(content string) string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return content
	}
	if len(sentences) == 1 {
		return sentences[0]
	}
	return sentences[0] + " " + sentences[len(sentences)-1]
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func heuristicLoss(content string, m distance.Metric) float64 {
	simplified := heuristicSimplify(content)
	l, err := m.Distance(context.Background(), content, simplified)
	if err != nil {
		return clampLoss(distance.Jaccard(content, simplified))
	}
	return clampLoss(l)
}

// ComputeGaloisLossAsync runs ComputeLoss on its own goroutine, returning a
// channel that receives exactly one Record-or-error, for callers that
// must not block on a generator round trip; the full llm method and the fallback heuristic
// method are both available synchronously via ComputeLoss/computeTagged.
func (c *Computer) ComputeGaloisLossAsync(ctx context.Context, content string, useCache bool) <-chan asyncResult {
	out := make(chan asyncResult, 1)
	go func() {
		rec, err := c.ComputeLoss(ctx, content, useCache)
		out <- asyncResult{Record: rec, Err: err}
		close(out)
	}()
	return out
}

type asyncResult struct {
	Record Record
	Err    error
}
