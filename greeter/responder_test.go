package greeter

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/signalhub/bollywood"
	"github.com/lguibr/signalhub/metrics"
	"github.com/lguibr/signalhub/signals"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

// --- Mock Sink ---

type recordingSink struct {
	mu        sync.Mutex
	published []signals.Envelope
	failFirst int
}

func (s *recordingSink) Publish(env signals.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFirst > 0 {
		s.failFirst--
		return errors.New("front-end unreachable")
	}
	s.published = append(s.published, env)
	return nil
}

func (s *recordingSink) responses(t *testing.T) []signals.HelloResponse {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]signals.HelloResponse, 0, len(s.published))
	for _, env := range s.published {
		require.Equal(t, signals.HelloResponseSignal, env.Signal)
		var resp signals.HelloResponse
		require.NoError(t, env.Decode(&resp))
		out = append(out, resp)
	}
	return out
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

// --- Test Setup ---

type fixture struct {
	engine  *bollywood.Engine
	hub     *signals.Hub
	sink    *recordingSink
	metrics *metrics.Metrics
}

func setup(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		engine:  bollywood.NewEngine(),
		sink:    &recordingSink{},
		metrics: metrics.New(),
	}
	f.hub = signals.NewHub(f.sink, signals.WithMetrics(f.metrics), signals.WithLogger(zerolog.Nop()))
	t.Cleanup(func() { f.engine.Shutdown(time.Second) })
	return f
}

func (f fixture) start(t *testing.T, opts ...Option) *Task {
	t.Helper()
	opts = append([]Option{WithMetrics(f.metrics), WithLogger(zerolog.Nop())}, opts...)
	task, err := New(f.engine, f.hub, opts...).Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(task.Stop)
	return task
}

func (f fixture) sendHello(t *testing.T, payload string) {
	t.Helper()
	env := signals.Envelope{Signal: signals.HelloRequestSignal}
	if payload != "" {
		env.Payload = json.RawMessage(payload)
	}
	require.NoError(t, f.hub.Deliver(env))
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// --- Tests ---

func TestResponder_SingleRequestSingleResponse(t *testing.T) {
	f := setup(t)
	task := f.start(t)

	f.sendHello(t, "")

	require.True(t, waitFor(time.Second, func() bool { return task.Handled() == 1 }))
	assert.Equal(t, []signals.HelloResponse{{Message: "Hello from Rust! 🦀"}}, f.sink.responses(t))

	// No second response appears for the same request.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, f.sink.count())
	assert.Equal(t, uint64(1), task.Handled())
}

func TestResponder_NRequestsYieldNResponses(t *testing.T) {
	f := setup(t)
	task := f.start(t, WithGreeting("hi"))

	const n = 50
	for i := 0; i < n; i++ {
		f.sendHello(t, "")
	}

	require.True(t, waitFor(2*time.Second, func() bool { return task.Handled() == n }))
	resps := f.sink.responses(t)
	require.Len(t, resps, n)
	for _, resp := range resps {
		assert.Equal(t, "hi", resp.Message)
	}
	assert.Equal(t, float64(n), testutil.ToFloat64(f.metrics.SignalsEmitted.WithLabelValues(signals.HelloResponseSignal)))
}

func TestResponder_ResponseIgnoresRequestPayload(t *testing.T) {
	f := setup(t)
	f.start(t)

	f.sendHello(t, `{}`)
	f.sendHello(t, `{"name":"ignored"}`)
	f.sendHello(t, `[1,2,3]`)

	require.True(t, waitFor(time.Second, func() bool { return f.sink.count() == 3 }))
	resps := f.sink.responses(t)
	assert.Equal(t, resps[0], resps[1])
	assert.Equal(t, resps[1], resps[2])
}

func TestResponder_CloseWithoutRequestsExitsCleanly(t *testing.T) {
	f := setup(t)
	task := f.start(t)

	f.hub.Close()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("listen loop did not exit after the receiver closed")
	}
	assert.Equal(t, StateStopped, task.State())
	assert.Zero(t, f.sink.count())
	assert.NoError(t, task.Wait(context.Background()))

	// The responder actor is stopped with the loop.
	assert.True(t, waitFor(time.Second, func() bool { return f.engine.ActorCount() == 0 }))
}

func TestResponder_CloseDrainsQueuedRequests(t *testing.T) {
	f := setup(t)

	// Queue before the loop starts so every request is pending when the hub closes.
	New(f.engine, f.hub)
	for i := 0; i < 5; i++ {
		f.sendHello(t, "")
	}
	f.hub.Close()

	task := f.start(t)

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("listen loop did not exit")
	}
	assert.Equal(t, 5, f.sink.count())
	assert.Equal(t, uint64(5), task.Handled())
}

func TestResponder_EmitFailureDoesNotStopLoop(t *testing.T) {
	f := setup(t)
	f.sink.failFirst = 1
	task := f.start(t)

	f.sendHello(t, "")
	f.sendHello(t, "")

	require.True(t, waitFor(time.Second, func() bool { return task.Handled() == 2 }))
	assert.Equal(t, 1, f.sink.count(), "first response is lost, second is delivered")
}

func TestResponder_DispatchFailureIsCountedAndLoopContinues(t *testing.T) {
	f := setup(t)
	task := f.start(t)

	f.engine.Stop(task.PID())
	require.True(t, waitFor(time.Second, func() bool { return f.engine.ActorCount() == 0 }))

	f.sendHello(t, "")
	f.sendHello(t, "")

	require.True(t, waitFor(time.Second, func() bool {
		return testutil.ToFloat64(f.metrics.DispatchFailures) == 2
	}))
	assert.Zero(t, f.sink.count())
	assert.Zero(t, task.Handled())

	select {
	case <-task.Done():
		t.Fatal("a failed dispatch must not end the listen loop")
	default:
	}
	assert.Equal(t, StateIdle, task.State())
}

// gateEmitter holds every Emit until release is closed.
type gateEmitter struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newGateEmitter() *gateEmitter {
	return &gateEmitter{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (e *gateEmitter) Emit(string, interface{}) error {
	e.entered <- struct{}{}
	<-e.release
	e.calls.Add(1)
	return nil
}

func (e *gateEmitter) open() { e.once.Do(func() { close(e.release) }) }

func TestResponder_SlowHandlingIsAwaited(t *testing.T) {
	f := setup(t)
	emitter := newGateEmitter()
	task := f.start(t, WithEmitter(emitter))
	t.Cleanup(emitter.open)

	f.sendHello(t, "")

	select {
	case <-emitter.entered:
	case <-time.After(time.Second):
		t.Fatal("request never reached the actor")
	}

	// Well past any reasonable dispatch bound, the loop is still waiting.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateHandling, task.State())
	assert.Zero(t, task.Handled())

	emitter.open()

	require.True(t, waitFor(time.Second, func() bool { return task.Handled() == 1 }))
	assert.Equal(t, int32(1), emitter.calls.Load())
	assert.Zero(t, testutil.ToFloat64(f.metrics.DispatchFailures))
	assert.True(t, waitFor(time.Second, func() bool { return task.State() == StateIdle }))
}

func TestResponder_StopInterruptsSlowHandling(t *testing.T) {
	f := setup(t)
	emitter := newGateEmitter()
	task := f.start(t, WithEmitter(emitter))
	t.Cleanup(emitter.open)

	f.sendHello(t, "")
	<-emitter.entered

	stopped := make(chan struct{})
	go func() {
		task.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt a dispatch in progress")
	}
	assert.Equal(t, StateStopped, task.State())
	assert.Zero(t, testutil.ToFloat64(f.metrics.DispatchFailures))
}

// overlapEmitter records the highest number of concurrent Emit calls.
type overlapEmitter struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (e *overlapEmitter) Emit(string, interface{}) error {
	n := e.inFlight.Add(1)
	for {
		prev := e.maxSeen.Load()
		if n <= prev || e.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	e.inFlight.Add(-1)
	e.calls.Add(1)
	return nil
}

func TestResponder_HandlesRequestsSequentially(t *testing.T) {
	f := setup(t)
	emitter := &overlapEmitter{}
	f.start(t, WithEmitter(emitter))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = f.hub.Deliver(signals.Envelope{Signal: signals.HelloRequestSignal})
			}
		}()
	}
	wg.Wait()

	require.True(t, waitFor(2*time.Second, func() bool { return emitter.calls.Load() == 20 }))
	assert.Equal(t, int32(1), emitter.maxSeen.Load())
}

func TestResponder_StopCancelsLoop(t *testing.T) {
	f := setup(t)
	task := f.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, task.Wait(ctx), context.DeadlineExceeded)

	task.Stop()
	assert.Equal(t, StateStopped, task.State())

	// Stopping twice is harmless.
	task.Stop()
}

func TestResponder_StartOnStoppedEngine(t *testing.T) {
	f := setup(t)
	f.engine.Shutdown(time.Second)

	_, err := New(f.engine, f.hub).Start(context.Background())
	assert.ErrorIs(t, err, ErrSpawnFailed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "handling", StateHandling.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
