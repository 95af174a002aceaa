// Package soul implements the budgeted, mode-aware dialogue mediator C7,
// combining the Template Responder (C1), Principle Coordinates (C2), the
// Audit Log (C3), and the Loss Computer (C6).
package soul

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soulcore/mediator/internal/audit"
	"github.com/soulcore/mediator/internal/loss"
)

func nowUTC() time.Time { return time.Now().UTC() }

// ChunkFunc receives streamed output text as it arrives.
type ChunkFunc func(chunk string)

// DialogueOutput is the result of a Dialogue call.
type DialogueOutput struct {
	Response         string
	Mode             Mode
	BudgetTier       Budget
	TokensUsed       int
	WasTemplate      bool
	CoordinatesBlock string // set only at BudgetDeep
}

// Engine is the Soul Engine: dialogue + intercept + mode machine + budget
// tiers, grounded on the teacher's cmd/echo.go assessment/mode banners and
// core/persistence's mutex-guarded mutable-state pattern.
type Engine struct {
	mu    sync.Mutex
	state *State

	Generator loss.Generator
	Audit     *audit.Log
}

// NewEngine returns an Engine in ModeReflect with fresh state. generator
// and auditLog may both be nil (DORMANT/WHISPER-only operation, or tests).
func NewEngine(generator loss.Generator, auditLog *audit.Log) *Engine {
	return &Engine{
		state:     NewState(),
		Generator: generator,
		Audit:     auditLog,
	}
}

const emptyInputCanned = "What's on your mind?"

// Dialogue is the main dialogue and mediation entry point.
func (e *Engine) Dialogue(ctx context.Context, message string, modeOverride *Mode, budget Budget, onChunk ChunkFunc) DialogueOutput {
	e.mu.Lock()
	defer e.mu.Unlock()

	if modeOverride != nil && modeOverride.valid() {
		e.state.Mode = *modeOverride
	}
	activeMode := e.state.Mode

	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return DialogueOutput{
			Response:    emptyInputCanned,
			Mode:        activeMode,
			BudgetTier:  BudgetDormant,
			TokensUsed:  0,
			WasTemplate: true,
		}
	}

	if budget == BudgetDormant || templateEligible(trimmed) {
		if reply, ok := TryReply(trimmed, activeMode); ok {
			e.recordInteraction(0)
			return DialogueOutput{Response: reply, Mode: activeMode, BudgetTier: BudgetDormant, WasTemplate: true}
		}
	}

	if budget == BudgetWhisper {
		reply, ok := TryReply(trimmed, activeMode)
		if !ok {
			reply = "Mm. Go on."
		}
		e.recordInteraction(0)
		return DialogueOutput{Response: reply, Mode: activeMode, BudgetTier: BudgetWhisper, WasTemplate: true}
	}

	return e.generateDialogue(ctx, trimmed, activeMode, budget, onChunk)
}

func templateEligible(trimmed string) bool {
	return len(trimmed) < 20
}

func (e *Engine) generateDialogue(ctx context.Context, message string, activeMode Mode, budget Budget, onChunk ChunkFunc) DialogueOutput {
	if e.Generator == nil {
		reply, ok := TryReply(message, activeMode)
		if !ok {
			reply = "I hear you. Let's keep going."
		}
		e.recordInteraction(0)
		return DialogueOutput{Response: reply, Mode: activeMode, BudgetTier: budget, WasTemplate: true}
	}

	principlesMatched := e.state.Coordinates.MatchKeywords(message)
	patternsMatched := e.state.Persona.MatchPatterns(message)

	system := fmt.Sprintf("You are mediating a %s-mode dialogue.\n%s", activeMode, e.state.Coordinates.ToPromptSection())
	user := buildUserPrompt(message, principlesMatched, patternsMatched)

	var (
		text       string
		tokensUsed int
	)

	if onChunk != nil {
		if streaming, ok := e.Generator.(loss.StreamingGenerator); ok {
			ch, err := streaming.GenerateStream(ctx, system, user, loss.GenerateOptions{Temperature: 0.7, MaxTokens: 800})
			if err != nil {
				text = "I ran into trouble forming a response just now."
			} else {
				var b strings.Builder
				for chunk := range ch {
					if chunk.Err != nil {
						break
					}
					b.WriteString(chunk.Text)
					onChunk(chunk.Text)
					tokensUsed = chunk.TokensSoFar
				}
				text = b.String()
			}
		}
	}

	if text == "" {
		res, err := e.Generator.Generate(ctx, system, user, loss.GenerateOptions{Temperature: 0.7, MaxTokens: 800})
		if err != nil {
			text = "I ran into trouble forming a response just now."
		} else {
			text = res.Text
			tokensUsed = res.TokensUsed
			if tokensUsed == 0 {
				tokensUsed = estimateTokens(text)
			}
		}
	}

	e.recordInteraction(int64(tokensUsed))

	out := DialogueOutput{
		Response:   text,
		Mode:       activeMode,
		BudgetTier: budget,
		TokensUsed: tokensUsed,
	}
	if budget == BudgetDeep {
		out.CoordinatesBlock = e.state.Coordinates.ToPromptSection()
	}
	return out
}

func buildUserPrompt(message string, principlesMatched, patternsMatched []string) string {
	var b strings.Builder
	b.WriteString(message)
	if len(principlesMatched) > 0 {
		fmt.Fprintf(&b, "\n\n[matched principles: %s]", strings.Join(principlesMatched, ", "))
	}
	if len(patternsMatched) > 0 {
		fmt.Fprintf(&b, "\n[matched patterns: %s]", strings.Join(patternsMatched, ", "))
	}
	return b.String()
}

func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func (e *Engine) recordInteraction(tokens int64) {
	e.state.InteractionCount++
	e.state.SessionTokens += tokens
	e.state.LastInteraction = nowUTC()
}

// EnterMode sets the current mode and returns its fixed greeting line.
func (e *Engine) EnterMode(mode Mode) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !mode.valid() {
		return ""
	}
	e.state.Mode = mode
	return modeGreetings[mode]
}

// Manifest returns a read-only snapshot of the full Soul State.
func (e *Engine) Manifest() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.state
}

// ManifestBrief returns a read-only compact view of Soul State.
func (e *Engine) ManifestBrief() Brief {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Brief{
		Mode:             e.state.Mode,
		SessionTokens:    e.state.SessionTokens,
		InteractionCount: e.state.InteractionCount,
	}
}

// GetStarter returns the first fixed starter for mode, or the current
// mode's starter if mode is nil.
func (e *Engine) GetStarter(mode *Mode) string {
	return GetStarter(e.resolveMode(mode))
}

// GetAllStarters returns every fixed starter for mode, or the current
// mode's starters if mode is nil.
func (e *Engine) GetAllStarters(mode *Mode) []string {
	return GetAllStarters(e.resolveMode(mode))
}

// FormatStarters renders every starter for mode as a numbered list.
func (e *Engine) FormatStarters(mode *Mode) string {
	return FormatStarters(e.resolveMode(mode))
}

func (e *Engine) resolveMode(mode *Mode) Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mode != nil && mode.valid() {
		return *mode
	}
	return e.state.Mode
}
