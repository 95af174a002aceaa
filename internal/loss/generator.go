// Package loss computes the fixed-point loss L(P) = d(P, C(R(P))) for
// arbitrary textual content, through a small abstract generator capability
// rather than any concrete model backend.
package loss

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// GenerateOptions mirrors the teacher's core/llm GenerateOptions shape
// (temperature/max tokens), generalized away from any one provider.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// GenerateResult is the non-streaming completion result.
type GenerateResult struct {
	Text        string
	Model       string
	TokensUsed  int
	RawMetadata map[string]interface{}
}

// StreamChunk is one piece of a streamed completion.
type StreamChunk struct {
	Text          string
	IsFinal       bool
	TokensSoFar   int
	Err           error
}

// Generator is the abstract text-generation capability every generative
// path in the core depends on. Implementations must be safe to call from
// one goroutine at a time per owning Soul Engine instance.
type Generator interface {
	Generate(ctx context.Context, systemText, userText string, opts GenerateOptions) (GenerateResult, error)
	Name() string
}

// StreamingGenerator is an optional capability: generators may implement it
// to support incremental output.
type StreamingGenerator interface {
	Generator
	GenerateStream(ctx context.Context, systemText, userText string, opts GenerateOptions) (<-chan StreamChunk, error)
}

// Component is one named, weighted piece of a Restructure result.
type Component struct {
	Name         string
	Content      string
	Weight       float64
	Dependencies []string
}

// Ghost is an alternative restructuring path not chosen.
type Ghost struct {
	Content      string
	Rationale    string
	DeferralCost float64
}

// Modular is the decomposition of a text into named components, optionally
// with ghost alternatives — the R side of L(P) = d(P, C(R(P))).
type Modular struct {
	Components []Component
	Ghosts     []Ghost
}

// Stats tracks call/latency/failure counters for a Generator, grounded on
// the teacher's core/llm/multi_provider.go ProviderStats and the
// Morpheus/CLI fallback selection in agents/k/llm.py (SPEC_FULL §3).
type Stats struct {
	mu           sync.Mutex
	TotalCalls   int64
	SuccessCalls int64
	FailedCalls  int64
	TotalLatency time.Duration
	LastUsed     time.Time
}

func (s *Stats) record(success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalCalls++
	s.TotalLatency += latency
	s.LastUsed = time.Now()
	if success {
		s.SuccessCalls++
	} else {
		s.FailedCalls++
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalCalls:   s.TotalCalls,
		SuccessCalls: s.SuccessCalls,
		FailedCalls:  s.FailedCalls,
		TotalLatency: s.TotalLatency,
		LastUsed:     s.LastUsed,
	}
}

// InstrumentedGenerator wraps a Generator and records Stats around every
// call without changing its behavior.
type InstrumentedGenerator struct {
	Generator
	Stats *Stats
}

// Instrument wraps g, attaching a fresh Stats tracker.
func Instrument(g Generator) *InstrumentedGenerator {
	return &InstrumentedGenerator{Generator: g, Stats: &Stats{}}
}

func (ig *InstrumentedGenerator) Generate(ctx context.Context, systemText, userText string, opts GenerateOptions) (GenerateResult, error) {
	start := time.Now()
	res, err := ig.Generator.Generate(ctx, systemText, userText, opts)
	ig.Stats.record(err == nil, time.Since(start))
	return res, err
}

// restructureTemplate is the fixed prompt template for the reference R
// adapter, parsed back with the COMPONENT:/CONTENT:/DEPENDS:/--- /GHOST
// line-oriented format described in spec.md §4.6.
const restructureTemplate = `Decompose the following content into its essential independent
components. For each component emit:
COMPONENT: <name>
CONTENT: <content>
DEPENDS: <comma-separated component names, or none>
Separate components with a line containing only ---.
If you can see a plausible alternative decomposition you did not choose,
emit a trailing block:
GHOST
CONTENT: <alternative content>
RATIONALE: <why this wasn't chosen>
DEFERRAL_COST: <0..1>

CONTENT TO DECOMPOSE:
%s`

// Restructure decomposes content into a Modular representation by prompting
// g with the reference template and parsing its response. Parser failures
// fall back to a single whole-content component, never an error.
func Restructure(ctx context.Context, g Generator, content string) (Modular, error) {
	prompt := fmt.Sprintf(restructureTemplate, content)
	res, err := g.Generate(ctx, "You decompose text into named components.", prompt, GenerateOptions{Temperature: 0.2, MaxTokens: 1024})
	if err != nil {
		return Modular{Components: []Component{{Name: "whole", Content: content, Weight: 1.0}}}, err
	}
	return parseModular(res.Text, content), nil
}

func parseModular(text, fallbackContent string) Modular {
	blocks := strings.Split(text, "---")
	var m Modular
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if strings.HasPrefix(block, "GHOST") {
			m.Ghosts = append(m.Ghosts, parseGhost(block))
			continue
		}
		comp, ok := parseComponent(block)
		if ok {
			m.Components = append(m.Components, comp)
		}
	}
	if len(m.Components) == 0 {
		m.Components = []Component{{Name: "whole", Content: fallbackContent, Weight: 1.0}}
	}
	return m
}

func parseComponent(block string) (Component, bool) {
	var c Component
	found := false
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "COMPONENT:"):
			c.Name = strings.TrimSpace(strings.TrimPrefix(line, "COMPONENT:"))
			found = true
		case strings.HasPrefix(line, "CONTENT:"):
			c.Content = strings.TrimSpace(strings.TrimPrefix(line, "CONTENT:"))
		case strings.HasPrefix(line, "DEPENDS:"):
			deps := strings.TrimSpace(strings.TrimPrefix(line, "DEPENDS:"))
			if deps != "" && !strings.EqualFold(deps, "none") {
				for _, d := range strings.Split(deps, ",") {
					c.Dependencies = append(c.Dependencies, strings.TrimSpace(d))
				}
			}
		}
	}
	c.Weight = 1.0
	return c, found
}

func parseGhost(block string) Ghost {
	var g Ghost
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "CONTENT:"):
			g.Content = strings.TrimSpace(strings.TrimPrefix(line, "CONTENT:"))
		case strings.HasPrefix(line, "RATIONALE:"):
			g.Rationale = strings.TrimSpace(strings.TrimPrefix(line, "RATIONALE:"))
		case strings.HasPrefix(line, "DEFERRAL_COST:"):
			fmt.Sscanf(strings.TrimSpace(strings.TrimPrefix(line, "DEFERRAL_COST:")), "%f", &g.DeferralCost)
		}
	}
	return g
}

// Reconstitute reassembles a Modular representation into a single text by
// prompting g — the C side of L(P) = d(P, C(R(P))).
func Reconstitute(ctx context.Context, g Generator, m Modular) (string, error) {
	var b strings.Builder
	b.WriteString("Reassemble the following components into one coherent text,\n")
	b.WriteString("respecting their stated dependencies:\n\n")
	for _, c := range m.Components {
		fmt.Fprintf(&b, "[%s] (depends on %v)\n%s\n\n", c.Name, c.Dependencies, c.Content)
	}
	res, err := g.Generate(ctx, "You reassemble components into one coherent text.", b.String(), GenerateOptions{Temperature: 0.2, MaxTokens: 1024})
	if err != nil {
		return simplisticReconstitute(m), err
	}
	return res.Text, nil
}

func simplisticReconstitute(m Modular) string {
	parts := make([]string, 0, len(m.Components))
	for _, c := range m.Components {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, " ")
}
