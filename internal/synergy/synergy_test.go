package synergy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulcore/mediator/internal/events"
)

type recordingHandler struct {
	name string
	res  Result
	err  error
}

func (h recordingHandler) Name() string { return h.name }
func (h recordingHandler) Handle(ctx context.Context, e events.Event) (Result, error) {
	return h.res, h.err
}

type panickingHandler struct{}

func (panickingHandler) Name() string { return "panicker" }
func (panickingHandler) Handle(ctx context.Context, e events.Event) (Result, error) {
	panic("boom")
}

func TestEmitAndWaitReturnsAllResults(t *testing.T) {
	b := New()
	b.Register(events.KindThought, recordingHandler{name: "h1", res: Result{Success: true, Message: "ok"}})
	b.Register(events.KindThought, recordingHandler{name: "h2", res: Result{Success: true, Message: "ok2"}})

	e := events.NewAmbient(events.KindThought, events.Payload{"text": "hmm"}, "")
	results := b.EmitAndWait(context.Background(), e)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
}

func TestHandlerErrorBecomesFailureResult(t *testing.T) {
	b := New()
	b.Register(events.KindThought, recordingHandler{name: "h1", err: errors.New("boom")})

	e := events.NewAmbient(events.KindThought, nil, "")
	results := b.EmitAndWait(context.Background(), e)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestHandlerPanicIsConvertedNotPropagated(t *testing.T) {
	b := New()
	b.Register(events.KindThought, panickingHandler{})

	e := events.NewAmbient(events.KindThought, nil, "")
	assert.NotPanics(t, func() {
		results := b.EmitAndWait(context.Background(), e)
		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
	})
}

func TestEmitDispatchesInBackgroundAndDrainWaits(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var called bool
	b.Register(events.KindPing, recordingHandlerFunc(func() {
		mu.Lock()
		called = true
		mu.Unlock()
	}))

	b.Emit(context.Background(), events.NewPing(""))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Drain(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, called)
}

func recordingHandlerFunc(f func()) Handler {
	return funcHandler{f: f}
}

type funcHandler struct{ f func() }

func (funcHandler) Name() string { return "func" }
func (h funcHandler) Handle(ctx context.Context, e events.Event) (Result, error) {
	h.f()
	return Result{Success: true}, nil
}

func TestResultSubscribersReceiveEveryDispatch(t *testing.T) {
	b := New()
	b.Register(events.KindThought, recordingHandler{name: "h1", res: Result{Success: true}})

	var received []Result
	var mu sync.Mutex
	unsub := b.SubscribeResults(func(e events.Event, r Result) {
		mu.Lock()
		received = append(received, r)
		mu.Unlock()
	})
	defer unsub()

	b.EmitAndWait(context.Background(), events.NewAmbient(events.KindThought, nil, ""))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 1)
}

func TestClearResetsRegistrationsAndSubscribers(t *testing.T) {
	b := New()
	b.Register(events.KindThought, recordingHandler{name: "h1", res: Result{Success: true}})
	b.SubscribeResults(func(e events.Event, r Result) {})

	b.Clear()

	results := b.EmitAndWait(context.Background(), events.NewAmbient(events.KindThought, nil, ""))
	assert.Empty(t, results)
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	b := New()
	unsub := b.Register(events.KindThought, recordingHandler{name: "h1", res: Result{Success: true}})
	unsub()

	results := b.EmitAndWait(context.Background(), events.NewAmbient(events.KindThought, nil, ""))
	assert.Empty(t, results)
}
