// Package flux implements the Flux Runtime C9: lifts a Soul Engine to an
// event-stream service with a priority-merge scheduler, perturbation
// injection, an entropy budget, and an optional pulse loop.
//
// The processing loop is grounded on the teacher's cognitive_event_bus.go
// single-goroutine dispatch loop (core/deeptreeecho/cognitive_event_bus.go);
// task lifecycle (processing + pulse) uses golang.org/x/sync/errgroup, the
// way the pack generally manages grouped goroutine lifetimes.
package flux

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emirpasic/gods/v2/queues/priorityqueue"
	"github.com/emirpasic/gods/v2/utils"
	"golang.org/x/sync/errgroup"

	"github.com/soulcore/mediator/internal/events"
	"github.com/soulcore/mediator/internal/principles"
	"github.com/soulcore/mediator/internal/soul"
)

// State is the Flux Runtime lifecycle state.
type State string

const (
	StateDormant  State = "dormant"
	StateFlowing  State = "flowing"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// Source yields the next input event, or ok=false when exhausted.
type Source interface {
	Next(ctx context.Context) (events.Event, bool, error)
}

// MirrorSink is an optional best-effort observability sink; failures are
// swallowed.
type MirrorSink interface {
	Publish(e events.Event) error
}

type pendingPerturbation struct {
	seq    int64
	event  events.Event
	result chan events.Event
}

// Config configures a Runtime instance.
type Config struct {
	EntropyBudget       int64
	PulseInterval       time.Duration // 0 disables the pulse loop
	PerturbationTimeout time.Duration
	OutputQueueSize     int
	Mirror              MirrorSink
}

// DefaultConfig returns sensible defaults: unlimited-ish entropy, no
// pulse loop, a 5s perturbation timeout, and a modestly bounded output
// queue.
func DefaultConfig() Config {
	return Config{
		EntropyBudget:       1_000_000,
		PerturbationTimeout: 5 * time.Second,
		OutputQueueSize:     256,
	}
}

// Runtime is one Flux instance. It owns exactly one Soul Engine. State,
// the entropy counter, and the perturbation queue are all guarded by mu,
// since Invoke is called on the caller's goroutine while the processing
// loop mutates the same fields concurrently on its own goroutine.
// Multiple Runtime instances may run concurrently without sharing state.
type Runtime struct {
	Soul   *soul.Engine
	cfg    Config
	output chan events.Event

	mu            sync.Mutex
	state         State
	perturbations *priorityqueue.Queue[*pendingPerturbation]
	perturbSeq    int64
	entropy       int64

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New constructs a Runtime in StateDormant.
func New(engine *soul.Engine, cfg Config) *Runtime {
	if cfg.OutputQueueSize <= 0 {
		cfg.OutputQueueSize = 256
	}
	var cmp utils.Comparator[*pendingPerturbation] = func(a, b *pendingPerturbation) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	}
	return &Runtime{
		Soul:          engine,
		cfg:           cfg,
		state:         StateDormant,
		output:        make(chan events.Event, cfg.OutputQueueSize),
		perturbations: priorityqueue.New[*pendingPerturbation](cmp),
		entropy:       cfg.EntropyBudget,
	}
}

// State reports the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Output is the emitted event stream.
func (r *Runtime) Output() <-chan events.Event { return r.output }

// Start transitions DORMANT/STOPPED -> FLOWING, spawning the processing
// loop and, if configured, the pulse loop.
func (r *Runtime) Start(ctx context.Context, source Source) error {
	r.mu.Lock()
	if r.state != StateDormant && r.state != StateStopped {
		cur := r.state
		r.mu.Unlock()
		return fmt.Errorf("flux: cannot start from state %s", cur)
	}
	r.state = StateFlowing
	r.mu.Unlock()

	startCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	group, gctx := errgroup.WithContext(startCtx)
	r.group = group

	group.Go(func() error {
		r.processingLoop(gctx, source)
		return nil
	})

	if r.cfg.PulseInterval > 0 {
		group.Go(func() error {
			r.pulseLoop(gctx)
			return nil
		})
	}
	return nil
}

// Stop transitions to STOPPED from any state: cancels background tasks,
// drains pending perturbations with a cancellation error, and closes the
// output stream.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.group != nil {
		r.group.Wait()
	}
	r.drainPendingWithCancellation()

	r.mu.Lock()
	wasStopped := r.state == StateStopped
	r.state = StateStopped
	r.mu.Unlock()

	if !wasStopped {
		close(r.output)
	}
}

func (r *Runtime) drainPendingWithCancellation() {
	for {
		p, ok := r.dequeuePerturbation()
		if !ok {
			break
		}
		p.result <- events.New(events.KindError, events.Payload{"message": "flux: cancelled on stop"}, p.event.CorrelationID)
	}
}

// Reset transitions STOPPED -> DORMANT, clearing counters and queues.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateStopped {
		return fmt.Errorf("flux: reset only valid from stopped, got %s", r.state)
	}
	r.state = StateDormant
	r.entropy = r.cfg.EntropyBudget
	r.perturbations.Clear()
	r.output = make(chan events.Event, r.cfg.OutputQueueSize)
	return nil
}

// Invoke submits event for processing. In StateDormant it processes
// inline and returns synchronously. In FLOWING/DRAINING it is enqueued as
// a priority perturbation and awaits a correlated completion, bounded by
// the configured perturbation timeout.
func (r *Runtime) Invoke(ctx context.Context, e events.Event) (events.Event, error) {
	state := r.State()
	if state == StateDormant {
		return r.dispatch(e), nil
	}
	if state != StateFlowing && state != StateDraining {
		return events.Event{}, fmt.Errorf("flux: cannot invoke in state %s", state)
	}

	pending := r.enqueuePerturbation(e)

	timeout := r.cfg.PerturbationTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().PerturbationTimeout
	}
	select {
	case res := <-pending.result:
		return res, nil
	case <-time.After(timeout):
		return events.Event{}, fmt.Errorf("flux: perturbation_timeout exceeded after %s", timeout)
	case <-ctx.Done():
		return events.Event{}, ctx.Err()
	}
}

// enqueuePerturbation assigns the next sequence number and enqueues p
// under mu, the only safe way to touch the shared priority queue from a
// caller goroutine while the processing loop drains it concurrently.
func (r *Runtime) enqueuePerturbation(e events.Event) *pendingPerturbation {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perturbSeq++
	p := &pendingPerturbation{seq: r.perturbSeq, event: e, result: make(chan events.Event, 1)}
	r.perturbations.Enqueue(p)
	return p
}

func (r *Runtime) dequeuePerturbation() (*pendingPerturbation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perturbations.Dequeue()
}

const sourcePollInterval = 10 * time.Millisecond
const idleSleep = 5 * time.Millisecond

func (r *Runtime) processingLoop(ctx context.Context, source Source) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if r.State() == StateStopped {
			return
		}

		processedAny := false

		for {
			p, ok := r.dequeuePerturbation()
			if !ok {
				break
			}
			p.result <- r.safeDispatch(p.event)
			processedAny = true
		}

		r.mu.Lock()
		if r.entropy <= 0 {
			r.state = StateDraining
		}
		state := r.state
		r.mu.Unlock()

		if state != StateDraining {
			pollCtx, cancel := context.WithTimeout(ctx, sourcePollInterval)
			e, ok, err := source.Next(pollCtx)
			cancel()
			if err == nil && ok {
				r.mu.Lock()
				r.entropy--
				r.mu.Unlock()
				r.emit(r.safeDispatch(e))
				processedAny = true
			} else if err == nil && !ok {
				r.mu.Lock()
				r.state = StateDraining
				r.mu.Unlock()
			}
		}

		r.mu.Lock()
		shouldStop := r.state == StateDraining && r.perturbations.Empty()
		if shouldStop {
			r.state = StateStopped
		}
		r.mu.Unlock()
		if shouldStop {
			return
		}

		if !processedAny {
			select {
			case <-time.After(idleSleep):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Runtime) safeDispatch(e events.Event) (result events.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			result = events.New(events.KindError, events.Payload{
				"kind":          string(e.Kind),
				"original_kind": string(e.Kind),
				"message":       fmt.Sprintf("panic during dispatch: %v", rec),
			}, e.CorrelationID)
		}
	}()
	return r.dispatch(e)
}

func (r *Runtime) emit(e events.Event) {
	select {
	case r.output <- e:
	default:
		// backpressure: best-effort drop when the output queue is full.
	}
	if r.cfg.Mirror != nil {
		_ = r.cfg.Mirror.Publish(e)
	}
}

func (r *Runtime) pulseLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PulseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.State() != StateFlowing {
				return
			}
			brief := r.Soul.ManifestBrief()
			r.emit(events.NewPulse(brief.InteractionCount, brief.SessionTokens, string(brief.Mode), true))
		}
	}
}

// dispatch is the per-kind processing switch described in spec.md §4.9.
func (r *Runtime) dispatch(e events.Event) events.Event {
	switch e.Kind {
	case events.KindDialogueTurn:
		return r.dispatchDialogueTurn(e)
	case events.KindInterceptRequest:
		return r.dispatchInterceptRequest(e)
	case events.KindModeChange:
		return r.dispatchModeChange(e)
	case events.KindEigenvectorProbe:
		return r.dispatchEigenvectorProbe(e)
	case events.KindStateSnapshot:
		return r.stateSnapshotEvent(e.CorrelationID)
	case events.KindPing:
		return e
	case events.KindPerturbation:
		return r.dispatchPerturbation(e)
	default:
		if isAmbientKind(e.Kind) {
			return r.restamp(e)
		}
		return e
	}
}

func isAmbientKind(k events.Kind) bool {
	switch k {
	case events.KindThought, events.KindFeeling, events.KindObservation,
		events.KindSelfChallenge, events.KindPerturbation, events.KindGratitude:
		return true
	}
	return false
}

func (r *Runtime) restamp(e events.Event) events.Event {
	e.StateSnapshot = stateSnapshotPayload(r.Soul)
	return e
}

func (r *Runtime) dispatchDialogueTurn(e events.Event) events.Event {
	message, _ := e.Payload["message"].(string)
	var mode *soul.Mode
	if raw, ok := e.Payload["mode"].(string); ok && raw != "" {
		m := soul.Mode(raw)
		mode = &m
	}
	out := r.Soul.Dialogue(context.Background(), message, mode, soul.BudgetDialogue, nil)

	resp := events.NewDialogueTurn(out.Response, string(out.Mode), false, e.CorrelationID)
	resp.StateSnapshot = stateSnapshotPayload(r.Soul)
	return resp
}

func (r *Runtime) dispatchInterceptRequest(e events.Event) events.Event {
	prompt, _ := e.Payload["prompt"].(string)
	reason, _ := e.Payload["reason"].(string)
	severity, _ := e.Payload["severity"].(string)
	tokenID, _ := e.Payload["token_id"].(string)

	res := r.Soul.InterceptDeep(context.Background(), soul.Token{ID: tokenID, Prompt: prompt, Reason: reason, Severity: severity})

	resp := events.NewInterceptResult(res.Handled, res.Recommendation, res.Confidence, e.CorrelationID)
	resp.Payload["principles"] = res.Principles
	resp.Payload["patterns"] = res.Patterns
	resp.Payload["reasoning"] = res.Reasoning
	resp.Payload["audit_trail"] = res.AuditTrail
	resp.Payload["was_deep"] = res.WasDeep
	return resp
}

func (r *Runtime) dispatchModeChange(e events.Event) events.Event {
	toMode, _ := e.Payload["to_mode"].(string)
	greeting := r.Soul.EnterMode(soul.Mode(toMode))

	resp := events.NewDialogueTurn(greeting, toMode, false, e.CorrelationID)
	resp.StateSnapshot = stateSnapshotPayload(r.Soul)
	return resp
}

func (r *Runtime) dispatchEigenvectorProbe(e events.Event) events.Event {
	axes := r.Soul.Manifest().Coordinates.Axes()
	payload := events.Payload{"axes": axesPayload(axes)}
	return events.NewEigenvectorProbe(e.CorrelationID).WithState(payload)
}

func axesPayload(axes []principles.Axis) []map[string]interface{} {
	out := make([]map[string]interface{}, len(axes))
	for i, a := range axes {
		out[i] = map[string]interface{}{
			"name":       a.Name,
			"value":      a.Value,
			"confidence": a.Confidence,
		}
	}
	return out
}

func (r *Runtime) stateSnapshotEvent(correlationID string) events.Event {
	return events.NewStateSnapshot(correlationID).WithState(stateSnapshotPayload(r.Soul))
}

func stateSnapshotPayload(s *soul.Engine) events.Payload {
	brief := s.ManifestBrief()
	return events.Payload{
		"mode":              string(brief.Mode),
		"session_tokens":    brief.SessionTokens,
		"interaction_count": brief.InteractionCount,
	}
}

func (r *Runtime) dispatchPerturbation(e events.Event) events.Event {
	intensity, _ := e.Payload["intensity"].(float64)
	if intensity > 0.7 {
		return events.NewAmbient(events.KindThought, events.Payload{
			"text": "that perturbation registered strongly; sitting with it",
		}, e.CorrelationID)
	}
	return r.restamp(e)
}
