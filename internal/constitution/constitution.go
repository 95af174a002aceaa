// Package constitution implements Constitution & Contradictions C13: the
// live set of active axioms plus pairwise contradiction detection and
// synthesis, grounded on the teacher's mutex-guarded, append-only state
// pattern (core/persistence/state_manager.go) with the domain swapped
// from full-system state to an axiom registry.
package constitution

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soulcore/mediator/internal/fixedpoint"
	"github.com/soulcore/mediator/internal/loss"
)

// Status is an axiom's lifecycle state: active -> (suspended) -> retired.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRetired   Status = "retired"
)

// Axiom is one constitutional statement and its validation record.
type Axiom struct {
	ID             string
	Content        string
	Status         Status
	InitialLoss    float64
	Stability      float64
	CreatedAt      time.Time
	RetiredAt      time.Time
	RetiredReason  string
}

func normalize(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

// Severity classifies the strength of a detected contradiction.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWeak     Severity = "weak"
	SeverityModerate Severity = "moderate"
	SeverityStrong   Severity = "strong"
)

func classify(strength float64) Severity {
	switch {
	case strength <= 0.1:
		return SeverityNone
	case strength <= 0.2:
		return SeverityWeak
	case strength <= 0.5:
		return SeverityModerate
	default:
		return SeverityStrong
	}
}

// Contradiction records a detected conflict between two active axioms.
type Contradiction struct {
	ID             string
	AxiomA, AxiomB string // ids
	Strength       float64
	Severity       Severity
	SynthesisHint  string
	Resolved       bool
	ResolvedReason string
}

// Snapshot is a point-in-time view of the constitution, appended on every
// accepted add or retirement.
type Snapshot struct {
	Timestamp    time.Time
	TotalAxioms  int
	ActiveCount  int
	MeanLoss     float64
	ActiveIDs    []string
}

const contradictionSeparator = "\n---\n"
const defaultContradictionThreshold = 0.1
const axiomLossThreshold = 0.05

// Constitution holds the live axiom registry and contradiction ledger.
type Constitution struct {
	mu             sync.Mutex
	axioms         map[string]*Axiom
	contradictions []Contradiction
	snapshots      []Snapshot

	Computer  *loss.Computer
	Detector  *fixedpoint.Detector
}

// New wires a Constitution from its loss collaborators.
func New(computer *loss.Computer, detector *fixedpoint.Detector) *Constitution {
	return &Constitution{
		axioms:   make(map[string]*Axiom),
		Computer: computer,
		Detector: detector,
	}
}

// AddResult reports whether an Add succeeded and why not if it didn't.
type AddResult struct {
	Added          bool
	Axiom          *Axiom
	Reason         string
	Contradictions []Contradiction
}

// Add validates and registers a new axiom. Rejects if its initial loss is
// at or above axiomLossThreshold, or if an existing active axiom shares
// its normalized content.
func (c *Constitution) Add(ctx context.Context, content string, checkContradictions bool) (AddResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	norm := normalize(content)
	for _, a := range c.axioms {
		if a.Status == StatusActive && normalize(a.Content) == norm {
			return AddResult{Added: false, Reason: "duplicate of an existing active axiom"}, nil
		}
	}

	rec, err := c.Computer.ComputeLoss(ctx, content, true)
	if err != nil {
		return AddResult{}, err
	}
	if rec.Loss >= axiomLossThreshold {
		return AddResult{Added: false, Reason: "initial loss at or above the axiom acceptance threshold"}, nil
	}

	axiom := &Axiom{
		ID:          uuid.NewString(),
		Content:     content,
		Status:      StatusActive,
		InitialLoss: rec.Loss,
		CreatedAt:   nowUTC(),
	}
	c.axioms[axiom.ID] = axiom

	var found []Contradiction
	if checkContradictions {
		for _, other := range c.axioms {
			if other.ID == axiom.ID || other.Status != StatusActive {
				continue
			}
			contr, err := c.detectContradictionLocked(ctx, axiom, other)
			if err != nil {
				return AddResult{}, err
			}
			if contr.Severity != SeverityNone {
				c.contradictions = append(c.contradictions, contr)
				found = append(found, contr)
			}
		}
	}

	c.appendSnapshotLocked()
	return AddResult{Added: true, Axiom: axiom, Contradictions: found}, nil
}

// Retire marks an axiom retired and resolves every unresolved
// contradiction involving it.
func (c *Constitution) Retire(id, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	axiom, ok := c.axioms[id]
	if !ok {
		return false
	}
	axiom.Status = StatusRetired
	axiom.RetiredAt = nowUTC()
	axiom.RetiredReason = reason

	for i := range c.contradictions {
		contr := &c.contradictions[i]
		if contr.Resolved {
			continue
		}
		if contr.AxiomA == id || contr.AxiomB == id {
			contr.Resolved = true
			contr.ResolvedReason = "axiom retired: " + reason
		}
	}

	c.appendSnapshotLocked()
	return true
}

// DetectContradiction computes the (A, B) contradiction analysis per
// spec.md §4.13, independent of the live registry.
func (c *Constitution) DetectContradiction(ctx context.Context, contentA, contentB string) (Contradiction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detectContradictionLocked(ctx, &Axiom{ID: "a", Content: contentA}, &Axiom{ID: "b", Content: contentB})
}

func (c *Constitution) detectContradictionLocked(ctx context.Context, a, b *Axiom) (Contradiction, error) {
	lA, err := c.Computer.ComputeLoss(ctx, a.Content, true)
	if err != nil {
		return Contradiction{}, err
	}
	lB, err := c.Computer.ComputeLoss(ctx, b.Content, true)
	if err != nil {
		return Contradiction{}, err
	}

	combined := a.Content + contradictionSeparator + b.Content
	lAB, err := c.Computer.ComputeLoss(ctx, combined, true)
	if err != nil {
		return Contradiction{}, err
	}

	strength := lAB.Loss - (lA.Loss + lB.Loss)
	severity := classify(strength)

	contr := Contradiction{
		ID:       uuid.NewString(),
		AxiomA:   a.ID,
		AxiomB:   b.ID,
		Strength: strength,
		Severity: severity,
	}

	if strength > defaultContradictionThreshold {
		if c.Detector != nil && c.Detector.Generator != nil {
			modular, err := loss.Restructure(ctx, c.Detector.Generator, combined)
			if err == nil {
				contr.SynthesisHint = cheapestGhost(modular)
			}
		}
	}
	return contr, nil
}

func cheapestGhost(m loss.Modular) string {
	if len(m.Ghosts) == 0 {
		return ""
	}
	cheapest := m.Ghosts[0]
	for _, g := range m.Ghosts[1:] {
		if g.DeferralCost < cheapest.DeferralCost {
			cheapest = g
		}
	}
	return cheapest.Content
}

// ExplosionSafe reports whether the triple A, notA, A-and-notA is
// reportably safe from explosion: L(A) + L(notA) + L(A and notA) > 0.6.
func ExplosionSafe(lossA, lossNotA, lossConjunction float64) bool {
	return lossA+lossNotA+lossConjunction > 0.6
}

// Synthesize runs the fixed-point detector on a contradiction's synthesis
// hint; if it qualifies as a fixed point under the axiom threshold, it is
// returned as a candidate new axiom content.
func (c *Constitution) Synthesize(ctx context.Context, contr Contradiction) (string, bool, error) {
	if contr.SynthesisHint == "" || c.Detector == nil {
		return "", false, nil
	}
	res, err := c.Detector.Detect(ctx, contr.SynthesisHint, fixedpoint.DefaultThreshold, fixedpoint.DefaultStabilityThreshold, fixedpoint.DefaultMaxIterations)
	if err != nil {
		return "", false, err
	}
	if res.IsFixedPoint && res.InitialLoss < axiomLossThreshold {
		return contr.SynthesisHint, true, nil
	}
	return "", false, nil
}

func (c *Constitution) appendSnapshotLocked() {
	var total, active int
	var lossSum float64
	var activeIDs []string
	for _, a := range c.axioms {
		total++
		if a.Status == StatusActive {
			active++
			lossSum += a.InitialLoss
			activeIDs = append(activeIDs, a.ID)
		}
	}
	mean := 0.0
	if active > 0 {
		mean = lossSum / float64(active)
	}
	c.snapshots = append(c.snapshots, Snapshot{
		Timestamp:   nowUTC(),
		TotalAxioms: total,
		ActiveCount: active,
		MeanLoss:    mean,
		ActiveIDs:   activeIDs,
	})
}

// Snapshots returns every snapshot appended so far, in order.
func (c *Constitution) Snapshots() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Snapshot, len(c.snapshots))
	copy(out, c.snapshots)
	return out
}

// Contradictions returns every contradiction recorded so far.
func (c *Constitution) Contradictions() []Contradiction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Contradiction, len(c.contradictions))
	copy(out, c.contradictions)
	return out
}

// ActiveAxioms returns every axiom currently in StatusActive.
func (c *Constitution) ActiveAxioms() []Axiom {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Axiom
	for _, a := range c.axioms {
		if a.Status == StatusActive {
			out = append(out, *a)
		}
	}
	return out
}

func nowUTC() time.Time { return time.Now().UTC() }
