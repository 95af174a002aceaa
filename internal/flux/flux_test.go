package flux

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulcore/mediator/internal/events"
	"github.com/soulcore/mediator/internal/soul"
)

// chanSource adapts a plain events channel to the Source interface; a
// closed channel reports exhaustion.
type chanSource struct {
	ch chan events.Event
}

func (s *chanSource) Next(ctx context.Context) (events.Event, bool, error) {
	select {
	case e, ok := <-s.ch:
		if !ok {
			return events.Event{}, false, nil
		}
		return e, true, nil
	case <-ctx.Done():
		return events.Event{}, false, nil
	}
}

func newTestRuntime() (*Runtime, *chanSource) {
	engine := soul.NewEngine(nil, nil)
	src := &chanSource{ch: make(chan events.Event, 16)}
	cfg := DefaultConfig()
	cfg.EntropyBudget = 1000
	r := New(engine, cfg)
	return r, src
}

func TestStartTransitionsToFlowing(t *testing.T) {
	r, src := newTestRuntime()
	require.NoError(t, r.Start(context.Background(), src))
	assert.Equal(t, StateFlowing, r.State())
	r.Stop()
	assert.Equal(t, StateStopped, r.State())
}

func TestStartRejectsFromFlowing(t *testing.T) {
	r, src := newTestRuntime()
	require.NoError(t, r.Start(context.Background(), src))
	defer r.Stop()
	assert.Error(t, r.Start(context.Background(), src))
}

func TestResetOnlyValidFromStopped(t *testing.T) {
	r, src := newTestRuntime()
	assert.Error(t, r.Reset())
	require.NoError(t, r.Start(context.Background(), src))
	r.Stop()
	assert.NoError(t, r.Reset())
	assert.Equal(t, StateDormant, r.State())
}

func TestInvokeDormantProcessesInline(t *testing.T) {
	r, _ := newTestRuntime()
	e := events.NewPing("corr-1")
	out, err := r.Invoke(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, events.KindPing, out.Kind)
}

// TestModeChangePerturbationPreemption exercises the canonical mode-change
// scenario: inject a mode_change perturbation while FLOWING and expect a
// correlated dialogue_turn output announcing the new mode.
func TestModeChangePerturbationPreemption(t *testing.T) {
	r, src := newTestRuntime()
	require.NoError(t, r.Start(context.Background(), src))
	defer r.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	e := events.NewModeChange("challenge", "corr-mode-1")
	out, err := r.Invoke(ctx, e)
	require.NoError(t, err)

	assert.Equal(t, events.KindDialogueTurn, out.Kind)
	assert.Equal(t, "corr-mode-1", out.CorrelationID)
	msg, _ := out.Payload["message"].(string)
	assert.Contains(t, msg, "Entering CHALLENGE mode")
}

func TestPerturbationPreemptsSourceRead(t *testing.T) {
	r, src := newTestRuntime()
	require.NoError(t, r.Start(context.Background(), src))
	defer r.Stop()

	// Flood the source with ambient events that would otherwise keep the
	// loop busy reading; the perturbation should still complete promptly
	// since it is drained first each cycle.
	for i := 0; i < 5; i++ {
		src.ch <- events.NewAmbient(events.KindThought, events.Payload{"text": "filler"}, "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := r.Invoke(ctx, events.NewPing("corr-ping"))
	require.NoError(t, err)
	assert.Equal(t, "corr-ping", out.CorrelationID)
}

func TestStateSnapshotDispatch(t *testing.T) {
	r, _ := newTestRuntime()
	out, err := r.Invoke(context.Background(), events.NewStateSnapshot("corr-2"))
	require.NoError(t, err)
	assert.Equal(t, events.KindStateSnapshot, out.Kind)
	assert.Contains(t, out.StateSnapshot, "mode")
}

func TestEigenvectorProbeDispatch(t *testing.T) {
	r, _ := newTestRuntime()
	out, err := r.Invoke(context.Background(), events.NewEigenvectorProbe("corr-3"))
	require.NoError(t, err)
	assert.Equal(t, events.KindEigenvectorProbe, out.Kind)
	axes, ok := out.StateSnapshot["axes"].([]map[string]interface{})
	require.True(t, ok)
	assert.Len(t, axes, 6)
}

func TestStrongPerturbationProducesThought(t *testing.T) {
	r, _ := newTestRuntime()
	out, err := r.Invoke(context.Background(), events.NewPerturbation(0.9, nil, "corr-4"))
	require.NoError(t, err)
	assert.Equal(t, events.KindThought, out.Kind)
}

func TestWeakPerturbationPassesThrough(t *testing.T) {
	r, _ := newTestRuntime()
	out, err := r.Invoke(context.Background(), events.NewPerturbation(0.2, nil, "corr-5"))
	require.NoError(t, err)
	assert.Equal(t, events.KindPerturbation, out.Kind)
}

func TestEntropyDepletionTriggersDraining(t *testing.T) {
	engine := soul.NewEngine(nil, nil)
	src := &chanSource{ch: make(chan events.Event)}
	cfg := DefaultConfig()
	cfg.EntropyBudget = 0
	r := New(engine, cfg)

	require.NoError(t, r.Start(context.Background(), src))
	deadline := time.After(2 * time.Second)
	for r.State() == StateFlowing {
		select {
		case <-deadline:
			t.Fatal("runtime never left FLOWING after entropy depletion")
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Equal(t, StateStopped, r.State())
}

func TestInvokeRejectedAfterStop(t *testing.T) {
	r, src := newTestRuntime()
	require.NoError(t, r.Start(context.Background(), src))
	r.Stop()
	_, err := r.Invoke(context.Background(), events.NewPing(""))
	assert.Error(t, err)
}

func TestPulseLoopEmitsWhileFlowing(t *testing.T) {
	engine := soul.NewEngine(nil, nil)
	src := &chanSource{ch: make(chan events.Event)}
	cfg := DefaultConfig()
	cfg.PulseInterval = 20 * time.Millisecond
	cfg.EntropyBudget = 1000
	r := New(engine, cfg)

	require.NoError(t, r.Start(context.Background(), src))
	defer r.Stop()

	select {
	case e := <-r.Output():
		assert.Equal(t, events.KindPulse, e.Kind)
	case <-time.After(1 * time.Second):
		t.Fatal("no pulse event emitted within timeout")
	}
}

type failingMirror struct{ calls int }

func (m *failingMirror) Publish(e events.Event) error {
	m.calls++
	return assertErrMirror{}
}

type assertErrMirror struct{}

func (assertErrMirror) Error() string { return "mirror failure" }

func TestMirrorFailuresAreSwallowed(t *testing.T) {
	engine := soul.NewEngine(nil, nil)
	src := &chanSource{ch: make(chan events.Event, 1)}
	cfg := DefaultConfig()
	cfg.Mirror = &failingMirror{}
	cfg.EntropyBudget = 1000
	r := New(engine, cfg)

	src.ch <- events.NewAmbient(events.KindThought, events.Payload{"text": "hi"}, "")
	require.NoError(t, r.Start(context.Background(), src))
	defer r.Stop()

	select {
	case <-r.Output():
	case <-time.After(1 * time.Second):
		t.Fatal("expected restamped ambient event on output")
	}
}
