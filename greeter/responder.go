// Package greeter answers every hello request from the front-end with a
// fixed greeting.
package greeter

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lguibr/signalhub/bollywood"
	"github.com/lguibr/signalhub/metrics"
	"github.com/lguibr/signalhub/signals"
	"github.com/lguibr/signalhub/utils"
)

// ErrSpawnFailed is returned by Start when the engine is shutting down.
var ErrSpawnFailed = errors.New("greeter: engine refused to spawn responder actor")

// State of the listen loop.
type State int32

const (
	StateIdle State = iota
	StateHandling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandling:
		return "handling"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Emitter sends outbound signals to the front-end.
type Emitter interface {
	Emit(name string, payload interface{}) error
}

// Responder listens for RustHelloRequest and answers each with one RustHelloResponse.
type Responder struct {
	engine   *bollywood.Engine
	receiver *signals.Receiver
	emitter  Emitter
	greeting string
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// Option configures a Responder.
type Option func(*Responder)

// WithGreeting replaces the default greeting text.
func WithGreeting(greeting string) Option {
	return func(r *Responder) {
		if greeting != "" {
			r.greeting = greeting
		}
	}
}

// WithMetrics counts failed dispatches.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Responder) {
		r.metrics = m
	}
}

// WithLogger overrides the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Responder) {
		r.log = l
	}
}

// WithEmitter sends responses somewhere other than the hub.
func WithEmitter(e Emitter) Option {
	return func(r *Responder) {
		r.emitter = e
	}
}

// New claims the hello request receiver of hub. Nothing runs until Start.
func New(engine *bollywood.Engine, hub *signals.Hub, opts ...Option) *Responder {
	r := &Responder{
		engine:   engine,
		receiver: hub.Receiver(signals.HelloRequestSignal),
		emitter:  hub,
		greeting: utils.DefaultGreeting,
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("component", "greeter").Logger()
	return r
}

// Start spawns the responder actor and its listen loop. The loop runs until
// the receiver is closed or ctx is cancelled.
func (r *Responder) Start(ctx context.Context) (*Task, error) {
	pid := r.engine.Spawn(bollywood.NewProps(newHelloActorProducer(r.greeting, r.emitter, r.log)))
	if pid == nil {
		return nil, ErrSpawnFailed
	}

	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		pid:    pid,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go r.listen(ctx, task)

	r.log.Debug().Str("pid", pid.String()).Msg("listening for hello requests")
	return task, nil
}

// listen turns every inbound hello request into one dispatch to the actor,
// waiting for it to complete before taking the next request. Handling has no
// deadline; only Stop interrupts it.
func (r *Responder) listen(ctx context.Context, task *Task) {
	defer func() {
		task.state.Store(int32(StateStopped))
		r.engine.Stop(task.pid)
		close(task.done)
		r.log.Debug().Uint64("handled", task.handled.Load()).Msg("listen loop exited")
	}()

	for {
		if _, ok := r.receiver.Receive(ctx); !ok {
			return
		}

		task.state.Store(int32(StateHandling))
		_, err := r.engine.AskContext(ctx, task.pid, signals.HelloRequest{})
		task.state.Store(int32(StateIdle))

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// Best effort: this request goes unanswered, the next one is served normally.
			r.metrics.ObserveDispatchFailure()
			r.log.Debug().Err(err).Msg("hello dispatch failed")
			continue
		}
		task.handled.Add(1)
	}
}

// Task is the handle of a running listen loop.
type Task struct {
	pid     *bollywood.PID
	cancel  context.CancelFunc
	done    chan struct{}
	state   atomic.Int32
	handled atomic.Uint64
}

// PID returns the address of the responder actor.
func (t *Task) PID() *bollywood.PID { return t.pid }

// Done is closed once the listen loop has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Stop cancels the listen loop and waits for it to exit.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Wait blocks until the listen loop exits on its own or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports what the listen loop is doing.
func (t *Task) State() State { return State(t.state.Load()) }

// Handled counts the requests whose dispatch completed.
func (t *Task) Handled() uint64 { return t.handled.Load() }
