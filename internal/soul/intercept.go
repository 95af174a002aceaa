package soul

import (
	"context"
	"fmt"
	"strings"

	"github.com/soulcore/mediator/internal/audit"
	"github.com/soulcore/mediator/internal/loss"
)

// Token is an ephemeral view of a proposed operation submitted to
// intercept/intercept_deep.
type Token struct {
	ID       string
	Prompt   string
	Reason   string
	Severity string
}

// InterceptResult is the outcome of an intercept or intercept_deep call.
type InterceptResult struct {
	Handled       bool
	Recommendation string // approve | reject | escalate | review
	Confidence    float64
	Principles    []string
	Patterns      []string
	Reasoning     string
	AuditTrail    string
	WasDeep       bool
}

// hardDenyKeywords is the mandatory, non-overridable safety denylist.
var hardDenyKeywords = []string{
	"delete", "remove", "drop", "truncate", "destroy", "rm", "rmdir", "del",
	"production", "prod", "force", "--force", "-f", "sudo", "password",
	"secret", "token", "credential", "api_key", "apikey", "format", "wipe",
	"purge", "erase",
}

func containsHardDenyKeyword(lowerPrompt string) bool {
	for _, kw := range hardDenyKeywords {
		if strings.Contains(lowerPrompt, kw) {
			return true
		}
	}
	return false
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

// Intercept is the shallow, no-generator evaluation path.
func (e *Engine) Intercept(tok Token) InterceptResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interceptLocked(tok)
}

// Heuristic confidence formula weights and caps, per spec.md §4.7's open
// question — parameterized here but the 0.8 auto-resolve threshold below
// is deliberately left a literal, not derived from these.
const (
	principleWeight    = 0.25
	principleWeightCap = 0.6
	patternWeight      = 0.15
	patternWeightCap   = 0.4
)

func (e *Engine) interceptLocked(tok Token) InterceptResult {
	matchedPrinciples := e.state.Coordinates.MatchKeywords(tok.Prompt)
	matchedPatterns := e.state.Persona.MatchPatterns(tok.Prompt)

	confidence := clamp01(
		min(principleWeight*float64(len(matchedPrinciples)), principleWeightCap) +
			min(patternWeight*float64(len(matchedPatterns)), patternWeightCap),
	)

	res := InterceptResult{
		Confidence: confidence,
		Principles: matchedPrinciples,
		Patterns:   matchedPatterns,
		WasDeep:    false,
	}

	if confidence >= 0.8 && len(matchedPrinciples) > 0 {
		res.Handled = true
		if mentionsRemoval(tok.Prompt) && hasPrinciple(matchedPrinciples, "Minimalism") {
			res.Recommendation = "approve"
		} else {
			res.Recommendation = "review"
		}
		res.Reasoning = fmt.Sprintf("matched principles %v and patterns %v at confidence %.2f", matchedPrinciples, matchedPatterns, confidence)
		res.AuditTrail = fmt.Sprintf("SHALLOW: %s -> %s (confidence=%.2f)", tok.Prompt, res.Recommendation, confidence)
	} else {
		res.Handled = false
		res.Recommendation = "escalate"
		res.Reasoning = fmt.Sprintf("insufficient confidence (%.2f) or no matching principles for shallow auto-resolution", confidence)
		res.AuditTrail = fmt.Sprintf("SHALLOW_UNRESOLVED: %s (confidence=%.2f)", tok.Prompt, confidence)
	}
	return res
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func mentionsRemoval(prompt string) bool {
	lower := strings.ToLower(prompt)
	return strings.Contains(lower, "remove") || strings.Contains(lower, "delete") || strings.Contains(lower, "drop")
}

func hasPrinciple(principles []string, name string) bool {
	for _, p := range principles {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// InterceptDeep is the generator-backed evaluation path. The hard safety
// override is checked first and is non-overridable by principle logic or
// any generator output.
func (e *Engine) InterceptDeep(ctx context.Context, tok Token) InterceptResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	lowerPrompt := strings.ToLower(tok.Prompt)
	if containsHardDenyKeyword(lowerPrompt) {
		res := InterceptResult{
			Handled:        false,
			Recommendation: "escalate",
			Confidence:     0.0,
			Principles:     []string{"SAFETY_OVERRIDE"},
			WasDeep:        true,
			Reasoning:      "prompt matched the hard safety denylist; this override cannot be reversed by principle or generator logic",
		}
		res.AuditTrail = fmt.Sprintf("SAFETY_OVERRIDE: %s", tok.Prompt)
		e.logIntercept(tok, res)
		return res
	}

	if e.Generator == nil {
		res := e.interceptLocked(tok)
		res.WasDeep = false
		return res
	}

	res, err := e.interceptViaGenerator(ctx, tok)
	if err != nil {
		res = InterceptResult{
			Handled:        false,
			Recommendation: "escalate",
			Confidence:     0.0,
			Principles:     []string{"ERROR_FALLBACK"},
			WasDeep:        true,
			Reasoning:      fmt.Sprintf("generator error: %v", err),
		}
		res.AuditTrail = fmt.Sprintf("ERROR_FALLBACK: %s", tok.Prompt)
	}
	e.logIntercept(tok, res)
	return res
}

const interceptDeepSystemTemplate = `You evaluate a proposed operation against a set of governing principles.
%s
Hard rules, never overridable:
- never auto-approve a data-loss operation
- never auto-approve a production-affecting operation
- never auto-approve an operation touching secrets or credentials
- never auto-approve at low confidence
Respond in exactly four lines:
RECOMMENDATION: approve|reject|escalate
CONFIDENCE: <0..1>
PRINCIPLES: <comma separated>
REASONING: <one paragraph>`

func (e *Engine) interceptViaGenerator(ctx context.Context, tok Token) (InterceptResult, error) {
	system := fmt.Sprintf(interceptDeepSystemTemplate, e.state.Coordinates.ToPromptSection())
	user := fmt.Sprintf("OPERATION: %s\nREASON: %s\nSEVERITY: %s", tok.Prompt, tok.Reason, tok.Severity)

	out, err := e.Generator.Generate(ctx, system, user, loss.GenerateOptions{Temperature: 0.1, MaxTokens: 400})
	if err != nil {
		return InterceptResult{}, err
	}

	res, ok := parseInterceptResponse(out.Text)
	if !ok {
		return InterceptResult{
			Handled:        false,
			Recommendation: "escalate",
			Confidence:     0,
			WasDeep:        true,
			Reasoning:      "failed to parse generator response into the expected four-line format",
			AuditTrail:     "PARSE_FAILURE: defaulted to escalate",
		}, nil
	}
	res.WasDeep = true

	if res.Recommendation == "approve" && res.Confidence < 0.7 {
		res.Recommendation = "escalate"
		res.Reasoning += " (forced to escalate: approve recommendation below 0.7 confidence threshold)"
	}
	res.Handled = res.Recommendation != "escalate"
	res.AuditTrail = fmt.Sprintf("DEEP: %s -> %s (confidence=%.2f)", tok.Prompt, res.Recommendation, res.Confidence)
	return res, nil
}

func parseInterceptResponse(text string) (InterceptResult, bool) {
	var res InterceptResult
	sawRecommendation := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "RECOMMENDATION:"):
			rec := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "RECOMMENDATION:")))
			switch rec {
			case "approve", "reject", "escalate":
				res.Recommendation = rec
			default:
				res.Recommendation = "escalate"
			}
			sawRecommendation = true
		case strings.HasPrefix(line, "CONFIDENCE:"):
			var c float64
			if _, err := fmt.Sscanf(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")), "%f", &c); err == nil {
				res.Confidence = clamp01(c)
			}
		case strings.HasPrefix(line, "PRINCIPLES:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "PRINCIPLES:"))
			if raw != "" {
				for _, p := range strings.Split(raw, ",") {
					res.Principles = append(res.Principles, strings.TrimSpace(p))
				}
			}
		case strings.HasPrefix(line, "REASONING:"):
			res.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
		}
	}
	if !sawRecommendation {
		return InterceptResult{}, false
	}
	return res, true
}

func (e *Engine) logIntercept(tok Token, res InterceptResult) {
	if e.Audit == nil {
		return
	}
	e.Audit.Log(audit.Entry{
		Timestamp:  nowUTC(),
		TokenID:    tok.ID,
		Action:     res.Recommendation,
		Confidence: res.Confidence,
		Principles: res.Principles,
		Reasoning:  res.Reasoning,
		Operation:  tok.Prompt,
		Severity:   tok.Severity,
		WasDeep:    res.WasDeep,
	})
}
