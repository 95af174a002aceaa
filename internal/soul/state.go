package soul

import (
	"sort"
	"strings"
	"time"

	"github.com/soulcore/mediator/internal/principles"
)

// Persona holds the free-form preference and pattern maps referenced by
// Soul State. Preferences are opaque key/value notes surfaced in prompts;
// Patterns are keyword->label triggers matched the same way Principle
// Coordinates match keywords, feeding intercept's pattern count.
//
// spec.md leaves the exact shape of "preference and pattern maps" open;
// this mirrors the keyword-trigger shape C2 already uses so intercept's
// confidence formula (principles + patterns) treats both symmetrically.
type Persona struct {
	Preferences map[string]string
	Patterns    map[string]string // trigger substring -> pattern label
}

// NewPersona returns an empty Persona ready for use.
func NewPersona() Persona {
	return Persona{
		Preferences: make(map[string]string),
		Patterns:    make(map[string]string),
	}
}

// MatchPatterns returns the distinct pattern labels whose trigger substring
// appears in the lowercased text, deterministic order.
func (p Persona) MatchPatterns(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	seen := make(map[string]bool)
	triggers := make([]string, 0, len(p.Patterns))
	for trigger := range p.Patterns {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)
	for _, trigger := range triggers {
		label := p.Patterns[trigger]
		if strings.Contains(lower, trigger) && !seen[label] {
			seen[label] = true
			matched = append(matched, label)
		}
	}
	return matched
}

// State is the mutable aggregate C7 owns: mode, counters, timestamps,
// persona, and principle coordinates.
type State struct {
	Mode             Mode
	SessionTokens    int64
	InteractionCount int64
	CreatedAt        time.Time
	LastInteraction  time.Time
	Persona          Persona
	Coordinates      *principles.Coordinates
}

// NewState returns a fresh State in ModeReflect with neutral coordinates.
func NewState() *State {
	now := time.Now().UTC()
	return &State{
		Mode:        ModeReflect,
		CreatedAt:   now,
		Persona:     NewPersona(),
		Coordinates: principles.New(),
	}
}

// Brief is the compact, map-shaped view returned by ManifestBrief.
type Brief struct {
	Mode             Mode
	SessionTokens    int64
	InteractionCount int64
}
