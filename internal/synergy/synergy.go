// Package synergy implements the Synergy Bus C14: fire-and-forget
// post-hoc notification of significant core events to registered
// handlers, with an optional synchronous wait and a result-subscription
// channel, grounded on the teacher's cognitive_event_bus.go fan-out
// pattern (core/deeptreeecho/cognitive_event_bus.go).
package synergy

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/soulcore/mediator/internal/events"
)

// Result is the outcome of one handler invocation.
type Result struct {
	Success     bool
	HandlerName string
	Message     string
	ArtifactID  string
	Metadata    map[string]interface{}
}

// Handler reacts to an emitted event and produces a Result. Handler
// panics/errors are converted to failure Results, never re-raised to the
// bus.
type Handler interface {
	Name() string
	Handle(ctx context.Context, e events.Event) (Result, error)
}

// ResultSubscriber receives (event, result) after every handler
// invocation.
type ResultSubscriber func(e events.Event, r Result)

type registration struct {
	id      int64
	kind    events.Kind
	handler Handler
}

// Bus is the Synergy Bus: register/subscribe_results/emit/emit_and_wait/
// drain/clear.
type Bus struct {
	mu            sync.Mutex
	nextID        int64
	registrations []registration
	subscribers   map[int64]ResultSubscriber
	wg            sync.WaitGroup
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int64]ResultSubscriber)}
}

// Unsubscribe removes a registration or subscription.
type Unsubscribe func()

// Register attaches handler to every event of kind. The returned
// Unsubscribe removes it.
func (b *Bus) Register(kind events.Kind, handler Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.registrations = append(b.registrations, registration{id: id, kind: kind, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, r := range b.registrations {
			if r.id == id {
				b.registrations = append(b.registrations[:i], b.registrations[i+1:]...)
				break
			}
		}
	}
}

// SubscribeResults attaches f to receive every (event, result) pair
// produced by handler dispatch. The returned Unsubscribe removes it.
func (b *Bus) SubscribeResults(f ResultSubscriber) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = f

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

func (b *Bus) handlersFor(kind events.Kind) []Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Handler
	for _, r := range b.registrations {
		if r.kind == kind {
			out = append(out, r.handler)
		}
	}
	return out
}

func (b *Bus) notifySubscribers(e events.Event, r Result) {
	b.mu.Lock()
	subs := make([]ResultSubscriber, 0, len(b.subscribers))
	for _, f := range b.subscribers {
		subs = append(subs, f)
	}
	b.mu.Unlock()
	for _, f := range subs {
		f(e, r)
	}
}

func invokeHandler(ctx context.Context, h Handler, e events.Event) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{Success: false, HandlerName: h.Name(), Message: fmt.Sprintf("handler panicked: %v", rec)}
		}
	}()
	res, err := h.Handle(ctx, e)
	if err != nil {
		return Result{Success: false, HandlerName: h.Name(), Message: err.Error()}
	}
	res.HandlerName = h.Name()
	return res
}

// Emit spawns a background dispatch over every handler registered for
// e.Kind and returns immediately.
func (b *Bus) Emit(ctx context.Context, e events.Event) {
	handlers := b.handlersFor(e.Kind)
	if len(handlers) == 0 {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, h := range handlers {
			res := invokeHandler(ctx, h, e)
			b.notifySubscribers(e, res)
		}
	}()
}

// EmitAndWait synchronously runs every handler registered for e.Kind and
// returns all results.
func (b *Bus) EmitAndWait(ctx context.Context, e events.Event) []Result {
	handlers := b.handlersFor(e.Kind)
	results := make([]Result, 0, len(handlers))
	for _, h := range handlers {
		res := invokeHandler(ctx, h, e)
		results = append(results, res)
		b.notifySubscribers(e, res)
	}
	return results
}

// Drain awaits every pending background dispatch spawned by Emit, or
// returns a timeout error via ctx if it is cancelled first.
func (b *Bus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		var merr *multierror.Error
		merr = multierror.Append(merr, fmt.Errorf("drain: %w", ctx.Err()))
		return merr.ErrorOrNil()
	}
}

// Clear resets all registrations and subscribers. Testing only.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registrations = nil
	b.subscribers = make(map[int64]ResultSubscriber)
}
