package soul

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulcore/mediator/internal/audit"
	"github.com/soulcore/mediator/internal/loss"
)

func TestDialogueEmptyInputReturnsCannedDormantPrompt(t *testing.T) {
	e := NewEngine(nil, nil)
	out := e.Dialogue(context.Background(), "   ", nil, BudgetDialogue, nil)

	assert.Equal(t, emptyInputCanned, out.Response)
	assert.True(t, out.WasTemplate)
	assert.Equal(t, BudgetDormant, out.BudgetTier)
	assert.Equal(t, 0, out.TokensUsed)
	assert.Equal(t, int64(0), e.Manifest().InteractionCount)
}

func TestDialogueModeOverrideAppliesBeforeReply(t *testing.T) {
	e := NewEngine(nil, nil)
	mode := ModeChallenge
	out := e.Dialogue(context.Background(), "hi", &mode, BudgetDormant, nil)
	assert.Equal(t, ModeChallenge, out.Mode)
}

type fakeGen struct {
	reply string
	err   error
}

func (f fakeGen) Name() string { return "fake" }
func (f fakeGen) Generate(ctx context.Context, systemText, userText string, opts loss.GenerateOptions) (loss.GenerateResult, error) {
	if f.err != nil {
		return loss.GenerateResult{}, f.err
	}
	return loss.GenerateResult{Text: f.reply}, nil
}

func TestDialogueUsesGeneratorAtDialogueBudgetForLongInput(t *testing.T) {
	gen := fakeGen{reply: "a considered, generated response to a longer question"}
	e := NewEngine(gen, nil)
	out := e.Dialogue(context.Background(), "what should I do about this long complicated situation I'm facing", nil, BudgetDialogue, nil)

	assert.False(t, out.WasTemplate)
	assert.Equal(t, gen.reply, out.Response)
	assert.Greater(t, out.TokensUsed, 0)
}

func TestDialogueDeepBudgetAttachesCoordinatesBlock(t *testing.T) {
	gen := fakeGen{reply: "a deep and considered response to a longer question indeed"}
	e := NewEngine(gen, nil)
	out := e.Dialogue(context.Background(), "what should I really do about this long complicated situation", nil, BudgetDeep, nil)

	assert.NotEmpty(t, out.CoordinatesBlock)
}

func TestEnterModeReturnsFixedGreetingAndSwitchesMode(t *testing.T) {
	e := NewEngine(nil, nil)
	greeting := e.EnterMode(ModeChallenge)
	assert.True(t, strings.HasPrefix(greeting, "Entering CHALLENGE mode"))
	assert.Equal(t, ModeChallenge, e.Manifest().Mode)
}

func TestEnterModeUnknownModeIsNoOp(t *testing.T) {
	e := NewEngine(nil, nil)
	before := e.Manifest().Mode
	greeting := e.EnterMode(Mode("not-a-mode"))
	assert.Empty(t, greeting)
	assert.Equal(t, before, e.Manifest().Mode)
}

func TestInterceptShallowLowConfidenceEscalates(t *testing.T) {
	e := NewEngine(nil, nil)
	res := e.Intercept(Token{ID: "t1", Prompt: "what's the weather like"})
	assert.False(t, res.Handled)
	assert.Equal(t, "escalate", res.Recommendation)
}

func TestInterceptShallowHighConfidenceMinimalismApproves(t *testing.T) {
	e := NewEngine(nil, nil)
	// rig patterns to push confidence to 0.8: Minimalism + Caution (2 x 0.25)
	// plus two pattern matches (2 x 0.15)
	e.state.Persona.Patterns["cleanup"] = "Cleanup"
	e.state.Persona.Patterns["tidy"] = "Tidy"
	res := e.Intercept(Token{ID: "t2", Prompt: "carefully remove and delete this cleanup tidy unused file to simplify"})
	assert.GreaterOrEqual(t, res.Confidence, 0.8)
	if res.Handled {
		assert.Equal(t, "approve", res.Recommendation)
	}
}

func TestInterceptDeepSafetyOverrideIsNonOverridable(t *testing.T) {
	gen := fakeGen{reply: "RECOMMENDATION: approve\nCONFIDENCE: 0.95\nPRINCIPLES: Minimalism\nREASONING: fine"}
	auditLog := audit.New(100, nil)
	e := NewEngine(gen, auditLog)

	res := e.InterceptDeep(context.Background(), Token{ID: "t3", Prompt: "delete production database"})

	assert.False(t, res.Handled)
	assert.Equal(t, "escalate", res.Recommendation)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, []string{"SAFETY_OVERRIDE"}, res.Principles)
	assert.True(t, res.WasDeep)

	entries := auditLog.FilterByAction("escalate")
	require.Len(t, entries, 1)
}

func TestInterceptDeepNoGeneratorDelegatesToShallow(t *testing.T) {
	e := NewEngine(nil, nil)
	res := e.InterceptDeep(context.Background(), Token{ID: "t4", Prompt: "what's the weather"})
	assert.False(t, res.WasDeep)
}

func TestInterceptDeepForcesEscalateBelowConfidenceThreshold(t *testing.T) {
	gen := fakeGen{reply: "RECOMMENDATION: approve\nCONFIDENCE: 0.5\nPRINCIPLES: Minimalism\nREASONING: looks fine"}
	e := NewEngine(gen, audit.New(10, nil))

	res := e.InterceptDeep(context.Background(), Token{ID: "t5", Prompt: "rename this variable"})
	assert.Equal(t, "escalate", res.Recommendation)
}

func TestInterceptDeepGeneratorErrorLogsErrorFallback(t *testing.T) {
	gen := fakeGen{err: assertErr{}}
	auditLog := audit.New(10, nil)
	e := NewEngine(gen, auditLog)

	res := e.InterceptDeep(context.Background(), Token{ID: "t6", Prompt: "rename this variable"})
	assert.False(t, res.Handled)
	assert.Equal(t, "escalate", res.Recommendation)
	assert.Equal(t, []string{"ERROR_FALLBACK"}, res.Principles)
}

type assertErr struct{}

func (assertErr) Error() string { return "generator exploded" }

func TestGetStarterReturnsFixedPromptForMode(t *testing.T) {
	e := NewEngine(nil, nil)
	mode := ModeExplore
	s := e.GetStarter(&mode)
	assert.NotEmpty(t, s)
	assert.Contains(t, GetAllStarters(ModeExplore), s)
}

func TestFormatStartersNumbersEachLine(t *testing.T) {
	mode := ModeAdvise
	out := e2FormatStarters(mode)
	assert.True(t, strings.HasPrefix(out, "1. "))
}

func e2FormatStarters(mode Mode) string {
	e := NewEngine(nil, nil)
	return e.FormatStarters(&mode)
}
