package bollywood

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Engine manages the lifecycle and message dispatching for actors.
type Engine struct {
	pidCounter uint64
	actors     map[string]*process
	mu         sync.RWMutex // Protects the actors map
	stopping   atomic.Bool  // Indicates if the engine is shutting down

	pending   map[string]chan futureResponse // Outstanding Ask requests by request ID
	pendingMu sync.Mutex
}

// NewEngine creates a new actor engine.
func NewEngine() *Engine {
	return &Engine{
		actors:  make(map[string]*process),
		pending: make(map[string]chan futureResponse),
	}
}

// nextPID generates a unique process ID.
func (e *Engine) nextPID() *PID {
	id := atomic.AddUint64(&e.pidCounter, 1)
	return &PID{ID: fmt.Sprintf("actor-%d", id)}
}

// Spawn creates and starts a new actor based on the provided Props.
// It returns the PID of the newly created actor, or nil if the engine is stopping.
func (e *Engine) Spawn(props *Props) *PID {
	if e.stopping.Load() {
		log.Warn().Msg("engine is stopping, cannot spawn new actors")
		return nil
	}

	pid := e.nextPID()
	proc := newProcess(e, pid, props)

	e.mu.Lock()
	e.actors[pid.ID] = proc
	e.mu.Unlock()

	go proc.run()

	e.Send(pid, Started{}, nil)

	return pid
}

// Send delivers a message to the actor identified by the PID.
// Messages to unknown actors are dropped.
func (e *Engine) Send(pid *PID, message interface{}, sender *PID) {
	if pid == nil {
		return
	}
	// Allow system messages during shutdown for cleanup
	if e.stopping.Load() && !isSystemMessage(message) {
		return
	}

	proc, ok := e.lookup(pid)
	if !ok {
		log.Debug().Str("pid", pid.ID).Msgf("actor not found, dropping message %T", message)
		return
	}

	if err := proc.sendMessage(&messageEnvelope{Sender: sender, Message: message}); err != nil {
		if errors.Is(err, ErrActorStopped) {
			log.Debug().Str("pid", pid.ID).Msgf("actor stopped, dropping message %T", message)
			return
		}
		log.Warn().Err(err).Str("pid", pid.ID).Msgf("dropping message %T", message)
	}
}

// Ask sends a message to the actor and blocks until the actor replies, its
// Receive call for the message returns, or the timeout elapses. A Receive
// that returns without calling Reply yields a nil result.
func (e *Engine) Ask(pid *PID, message interface{}, timeout time.Duration) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := e.AskContext(ctx, pid, message)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s waiting on %s", ErrAskTimeout, timeout, pid.ID)
	}
	return result, err
}

// AskContext is Ask without a fixed timeout: it waits for the reply until ctx
// is done. If the actor stops first the pending request fails with
// ErrActorStopped, so a context without deadline does not leak.
func (e *Engine) AskContext(ctx context.Context, pid *PID, message interface{}) (interface{}, error) {
	if e.stopping.Load() {
		return nil, ErrEngineStopping
	}
	if pid == nil {
		return nil, ErrActorNotFound
	}

	proc, ok := e.lookup(pid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActorNotFound, pid.ID)
	}

	requestID := uuid.NewString()
	replyCh := make(chan futureResponse, 1)

	e.pendingMu.Lock()
	e.pending[requestID] = replyCh
	e.pendingMu.Unlock()

	defer func() {
		e.pendingMu.Lock()
		delete(e.pending, requestID)
		e.pendingMu.Unlock()
	}()

	if err := proc.sendMessage(&messageEnvelope{Message: message, RequestID: requestID}); err != nil {
		return nil, fmt.Errorf("ask %s: %w", pid.ID, err)
	}

	select {
	case res := <-replyCh:
		return res.Result, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("ask %s: %w", pid.ID, ctx.Err())
	}
}

// resolve completes an outstanding Ask. Later resolutions of the same request are ignored.
func (e *Engine) resolve(requestID string, res futureResponse) {
	e.pendingMu.Lock()
	replyCh, ok := e.pending[requestID]
	if ok {
		delete(e.pending, requestID)
	}
	e.pendingMu.Unlock()

	if ok {
		replyCh <- res
	}
}

// Stop requests an actor to stop processing messages and shut down.
// It sends the Stopping message and also directly signals the actor's stop channel.
func (e *Engine) Stop(pid *PID) {
	if pid == nil {
		return
	}
	proc, ok := e.lookup(pid)
	if !ok {
		return
	}

	// Stopping first, so the actor can clean up within its own context
	e.Send(pid, Stopping{}, nil)

	// Ensure termination even if the mailbox is full
	proc.closeStop()
}

// ActorCount returns the number of live actors.
func (e *Engine) ActorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.actors)
}

func (e *Engine) lookup(pid *PID) (*process, bool) {
	e.mu.RLock()
	proc, ok := e.actors[pid.ID]
	e.mu.RUnlock()
	return proc, ok
}

// remove removes an actor process from the engine's tracking.
func (e *Engine) remove(pid *PID) {
	e.mu.Lock()
	delete(e.actors, pid.ID)
	e.mu.Unlock()
}

// Shutdown stops all actors and waits for them to terminate gracefully.
func (e *Engine) Shutdown(timeout time.Duration) {
	if !e.stopping.CompareAndSwap(false, true) {
		log.Debug().Msg("engine already shutting down")
		return
	}

	e.mu.RLock()
	pidsToStop := make([]*PID, 0, len(e.actors))
	for _, proc := range e.actors {
		pidsToStop = append(pidsToStop, proc.pid)
	}
	e.mu.RUnlock()

	log.Debug().Int("actors", len(pidsToStop)).Msg("engine shutdown initiated")
	for _, pid := range pidsToStop {
		e.Stop(pid)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.ActorCount() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	e.mu.Lock()
	if remaining := len(e.actors); remaining > 0 {
		ids := make([]string, 0, remaining)
		for id := range e.actors {
			ids = append(ids, id)
		}
		log.Warn().Strs("actors", ids).Msg("engine shutdown timeout, actors did not stop gracefully")
		e.actors = make(map[string]*process)
	}
	e.mu.Unlock()

	log.Debug().Msg("engine shutdown complete")
}
