// Package axioms implements Axiom Discovery C12: a surface/mine/cluster/
// filter/validate/report pipeline that proposes candidate axioms from
// decision records and validates them as fixed points via C10.
//
// Clustering is grounded on the teacher's identity.consolidateMemories
// pairwise-similarity-then-merge pattern (core/deeptreeecho/identity.go),
// generalized from pattern-object similarity to plain Jaccard word overlap
// over mined candidate phrases.
package axioms

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/soulcore/mediator/internal/fixedpoint"
)

// Record is one decision record to mine for candidate axioms.
type Record struct {
	ResponseText string
	ProofClaim   string
	Decision     string
	Reasoning    string
}

// surface extracts the text to mine from a record: primary response text,
// then proof claim, then metadata decision/reasoning, concatenated.
func surface(r Record) string {
	var parts []string
	if r.ResponseText != "" {
		parts = append(parts, r.ResponseText)
	}
	if r.ProofClaim != "" {
		parts = append(parts, r.ProofClaim)
	}
	if r.Decision != "" {
		parts = append(parts, r.Decision)
	}
	if r.Reasoning != "" {
		parts = append(parts, r.Reasoning)
	}
	return strings.Join(parts, ". ")
}

// valueStatementPatterns mine "X is important", "always/never X", "X
// matters", "prioritize X", "value X", "prefer X" style statements. Built
// with regexp2 for its backreference/lookaround support, matching the
// pack's preference for regexp2 over stdlib regexp on richer patterns.
var valueStatementPatterns = []*regexp2.Regexp{
	regexp2.MustCompile(`(?i)([a-z][a-z0-9 ]{2,40}) is important`, 0),
	regexp2.MustCompile(`(?i)(always|never) ([a-z][a-z0-9 ]{2,40})`, 0),
	regexp2.MustCompile(`(?i)([a-z][a-z0-9 ]{2,40}) matters`, 0),
	regexp2.MustCompile(`(?i)prioritize ([a-z][a-z0-9 ]{2,40})`, 0),
	regexp2.MustCompile(`(?i)value ([a-z][a-z0-9 ]{2,40})`, 0),
	regexp2.MustCompile(`(?i)prefer ([a-z][a-z0-9 ]{2,40})`, 0),
}

// shortCapitalized matches short capitalized sentences (a plain "value
// statement" shape regexp2's richer features aren't needed for).
var shortCapitalized = regexp.MustCompile(`\b[A-Z][a-zA-Z]*(?:\s[a-zA-Z]+){1,5}[.!]`)

// MinePatterns runs the fixed regex pipeline over text and returns
// normalized (lowercased) candidate phrases.
func MinePatterns(text string) []string {
	var found []string
	for _, pat := range valueStatementPatterns {
		m, err := pat.FindStringMatch(text)
		for err == nil && m != nil {
			found = append(found, strings.ToLower(strings.TrimSpace(m.String())))
			m, err = pat.FindNextMatch(m)
		}
	}
	for _, m := range shortCapitalized.FindAllString(text, -1) {
		trimmed := strings.TrimRight(strings.TrimSpace(m), ".!")
		if trimmed != "" {
			found = append(found, strings.ToLower(trimmed))
		}
	}
	return found
}

// cluster is a greedy Jaccard-word-overlap group: members share at least
// threshold overlap with the cluster's representative (the longest
// phrase seen so far).
type cluster struct {
	representative string
	members        []string
}

func wordSet(phrase string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(phrase) {
		set[w] = true
	}
	return set
}

func jaccardOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter, union := 0, 0
	seen := make(map[string]bool, len(a)+len(b))
	for w := range a {
		seen[w] = true
	}
	for w := range b {
		seen[w] = true
	}
	union = len(seen)
	for w := range a {
		if b[w] {
			inter++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

const clusterThreshold = 0.5

// ClusterPhrases greedily clusters phrases by Jaccard word overlap,
// picking the longest phrase per cluster as representative.
func ClusterPhrases(phrases []string) []cluster {
	var clusters []cluster
	for _, phrase := range phrases {
		pw := wordSet(phrase)
		placed := false
		for i := range clusters {
			if jaccardOverlap(pw, wordSet(clusters[i].representative)) >= clusterThreshold {
				clusters[i].members = append(clusters[i].members, phrase)
				if len(phrase) > len(clusters[i].representative) {
					clusters[i].representative = phrase
				}
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, cluster{representative: phrase, members: []string{phrase}})
		}
	}
	return clusters
}

// Candidate is a clustered, count-filtered axiom proposal awaiting
// fixed-point validation.
type Candidate struct {
	Phrase          string
	Occurrences     int
	InitialLoss     float64
	Stability       float64
	IterationCount  int
	Confidence      float64
}

const (
	DefaultMinOccurrences = 3
	DefaultMaxCandidates  = 20
)

// Report is the output of Discover: validated, sorted candidates plus
// summary statistics.
type Report struct {
	Candidates      []Candidate
	PatternCount    int
	RecordsProcessed int
	Duration        time.Duration
}

// Discover runs the full surface/mine/cluster/filter/validate/report
// pipeline over records.
func Discover(ctx context.Context, detector *fixedpoint.Detector, records []Record, minOccurrences, maxCandidates int) (Report, error) {
	if minOccurrences <= 0 {
		minOccurrences = DefaultMinOccurrences
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	start := time.Now()
	var allPhrases []string
	for _, r := range records {
		text := surface(r)
		allPhrases = append(allPhrases, MinePatterns(text)...)
	}

	clusters := ClusterPhrases(allPhrases)

	var filtered []cluster
	for _, c := range clusters {
		if len(c.members) >= minOccurrences {
			filtered = append(filtered, c)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return len(filtered[i].members) > len(filtered[j].members)
	})
	if len(filtered) > maxCandidates {
		filtered = filtered[:maxCandidates]
	}

	var candidates []Candidate
	for _, c := range filtered {
		res, err := detector.Detect(ctx, c.representative, fixedpoint.DefaultThreshold, fixedpoint.DefaultStabilityThreshold, fixedpoint.DefaultMaxIterations)
		if err != nil {
			return Report{}, err
		}
		candidates = append(candidates, Candidate{
			Phrase:         c.representative,
			Occurrences:    len(c.members),
			InitialLoss:    res.InitialLoss,
			Stability:      res.Stability,
			IterationCount: res.Iterations,
			Confidence:     1 - res.InitialLoss,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].InitialLoss < candidates[j].InitialLoss
	})

	return Report{
		Candidates:       candidates,
		PatternCount:     len(allPhrases),
		RecordsProcessed: len(records),
		Duration:         time.Since(start),
	}, nil
}

// DiscoverFromText is the alternative entry point that accepts raw text
// instead of decision records.
func DiscoverFromText(ctx context.Context, detector *fixedpoint.Detector, texts []string, minOccurrences, maxCandidates int) (Report, error) {
	records := make([]Record, len(texts))
	for i, t := range texts {
		records[i] = Record{ResponseText: t}
	}
	return Discover(ctx, detector, records, minOccurrences, maxCandidates)
}
