// Package principles implements the fixed-dimension Principle Coordinates
// vector that biases generation and scores intercept decisions.
package principles

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Axis is one named personality dimension.
type Axis struct {
	Name         string
	PolarLow     string
	PolarHigh    string
	Value        float64 // 0..1, 0.5 is polar-neutral
	Confidence   float64 // 0..1
	Provenance   []string
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// axisOrder fixes the six axes and their iteration order, matching the
// teacher's practice of enumerating wisdom dimensions in a fixed slice
// (core/wisdom/metrics_enhanced.go) rather than relying on map order.
var axisOrder = []string{
	"minimalism",
	"caution",
	"autonomy",
	"curiosity",
	"directness",
	"patience",
}

var axisLabels = map[string][2]string{
	"minimalism": {"maximalist", "minimalist"},
	"caution":    {"reckless", "cautious"},
	"autonomy":   {"dependent", "autonomous"},
	"curiosity":  {"incurious", "curious"},
	"directness": {"indirect", "direct"},
	"patience":   {"impulsive", "patient"},
}

// Coordinates holds all six axes; every axis is always present and none
// can be removed. Construct with New.
type Coordinates struct {
	axes map[string]*Axis
}

// New returns a fresh Coordinates with every axis at neutral (0.5) and
// moderate confidence (0.5).
func New() *Coordinates {
	c := &Coordinates{axes: make(map[string]*Axis, len(axisOrder))}
	for _, name := range axisOrder {
		labels := axisLabels[name]
		c.axes[name] = &Axis{
			Name:       name,
			PolarLow:   labels[0],
			PolarHigh:  labels[1],
			Value:      0.5,
			Confidence: 0.5,
		}
	}
	return c
}

// Axes returns a snapshot of the axes in the fixed canonical order.
func (c *Coordinates) Axes() []Axis {
	out := make([]Axis, 0, len(axisOrder))
	for _, name := range axisOrder {
		out = append(out, *c.axes[name])
	}
	return out
}

// Modify updates a named axis. Returns false if the name is unknown; the
// axis is left untouched in that case. Both value and confidence are
// clamped to [0,1] after the update, atomically with respect to this call.
func (c *Coordinates) Modify(name string, delta float64, absolute *float64, confidenceDelta float64) bool {
	axis, ok := c.axes[name]
	if !ok {
		return false
	}
	if absolute != nil {
		axis.Value = clamp01(*absolute)
	} else {
		axis.Value = clamp01(axis.Value + delta)
	}
	axis.Confidence = clamp01(axis.Confidence + confidenceDelta)
	return true
}

// AddProvenance appends a provenance note to a named axis; no-op on an
// unknown name.
func (c *Coordinates) AddProvenance(name, note string) {
	if axis, ok := c.axes[name]; ok {
		axis.Provenance = append(axis.Provenance, note)
	}
}

// ToPromptSection renders a deterministic textual description suitable for
// concatenation into a generator prompt.
func (c *Coordinates) ToPromptSection() string {
	var b strings.Builder
	b.WriteString("Principle coordinates:\n")
	for _, name := range axisOrder {
		a := c.axes[name]
		pole := a.PolarHigh
		if a.Value < 0.5 {
			pole = a.PolarLow
		}
		fmt.Fprintf(&b, "- %s: %.2f (leaning %s, confidence %.2f)\n", a.Name, a.Value, pole, a.Confidence)
	}
	return b.String()
}

// keywordPrinciples maps a lowercase substring to the principle ids it
// triggers. A principle id here is simply an axis name rendered in the
// caller-facing casing used across audit trails and intercepts.
var keywordPrinciples = map[string][]string{
	"delete":    {"Minimalism"},
	"remove":    {"Minimalism"},
	"simplify":  {"Minimalism"},
	"reduce":    {"Minimalism"},
	"risky":     {"Caution"},
	"dangerous": {"Caution"},
	"careful":   {"Caution"},
	"backup":    {"Caution"},
	"decide":    {"Autonomy"},
	"independent": {"Autonomy"},
	"explore":   {"Curiosity"},
	"curious":   {"Curiosity"},
	"learn":     {"Curiosity"},
	"honest":    {"Directness"},
	"direct":    {"Directness"},
	"blunt":     {"Directness"},
	"wait":      {"Patience"},
	"slow down": {"Patience"},
	"later":     {"Patience"},
}

// MatchKeywords extracts the principle ids triggered in text against this
// Coordinates' fixed keyword table. The table itself is axis-independent,
// but the method form lets callers read it as "coordinates classify this
// text" rather than reaching into the package.
func (c *Coordinates) MatchKeywords(text string) []string {
	return MatchKeywords(text)
}

// MatchKeywords extracts the principle ids triggered by lowercase substring
// matching against the fixed keyword table, deduplicated and capped at 3.
func MatchKeywords(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var matched []string

	// Iterate keys in sorted order so results are deterministic regardless
	// of map iteration order.
	keys := make([]string, 0, len(keywordPrinciples))
	for k := range keywordPrinciples {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, kw := range keys {
		if !strings.Contains(lower, kw) {
			continue
		}
		for _, p := range keywordPrinciples[kw] {
			if seen[p] {
				continue
			}
			seen[p] = true
			matched = append(matched, p)
			if len(matched) == 3 {
				return matched
			}
		}
	}
	return matched
}
