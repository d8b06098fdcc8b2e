package bollywood

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

const defaultMailboxSize = 1024

// process represents the running instance of an actor, including its state and mailbox.
type process struct {
	engine   *Engine
	pid      *PID
	actor    Actor
	mailbox  chan *messageEnvelope
	props    *Props
	stopCh   chan struct{} // Signal to stop the run loop
	stopOnce sync.Once
	stopped  atomic.Bool
	exitMu   sync.RWMutex // Orders sends against the final drain of the mailbox
}

func newProcess(engine *Engine, pid *PID, props *Props) *process {
	size := defaultMailboxSize
	if props != nil && props.mailboxSize > 0 {
		size = props.mailboxSize
	}
	return &process{
		engine:  engine,
		pid:     pid,
		props:   props,
		mailbox: make(chan *messageEnvelope, size),
		stopCh:  make(chan struct{}),
	}
}

// sendMessage puts an envelope in the mailbox without blocking.
func (p *process) sendMessage(envelope *messageEnvelope) error {
	p.exitMu.RLock()
	defer p.exitMu.RUnlock()

	// Don't bother queueing user messages once stopped; system messages pass.
	if p.stopped.Load() && !isSystemMessage(envelope.Message) {
		return ErrActorStopped
	}

	select {
	case p.mailbox <- envelope:
		return nil
	default:
		return ErrMailboxFull
	}
}

func (p *process) closeStop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// run is the main loop for the actor process.
func (p *process) run() {
	defer func() {
		// Any send that saw the process running has enqueued by now.
		p.exitMu.Lock()
		p.stopped.Store(true)
		p.exitMu.Unlock()

		if p.actor != nil {
			p.invokeReceive(&messageEnvelope{Message: Stopped{}})
		}
		p.failPending()
		// Remove from engine *after* Stopped message is processed
		p.engine.remove(p.pid)
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("pid", p.pid.ID).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("actor process panicked")
			p.stopped.Store(true)
			p.closeStop()
		}
	}()

	p.actor = p.props.Produce()
	if p.actor == nil {
		panic(fmt.Sprintf("actor %s producer returned nil actor", p.pid.ID))
	}

	for {
		select {
		case <-p.stopCh:
			if p.stopped.CompareAndSwap(false, true) {
				// Stop signalled directly, Stopping not yet seen
				p.invokeReceive(&messageEnvelope{Message: Stopping{}})
			}
			return

		case envelope := <-p.mailbox:
			switch envelope.Message.(type) {
			case Stopping:
				if p.stopped.CompareAndSwap(false, true) {
					p.invokeReceive(envelope)
					p.closeStop()
				}
			case Stopped:
				// Delivered by the deferred cleanup only
			case Started:
				p.invokeReceive(envelope)
			default:
				if p.stopped.Load() {
					p.reject(envelope)
					continue
				}
				p.invokeReceive(envelope)
			}
		}
	}
}

// reject fails an Ask whose message will never be processed.
func (p *process) reject(envelope *messageEnvelope) {
	if envelope.RequestID != "" {
		p.engine.resolve(envelope.RequestID, futureResponse{Err: fmt.Errorf("%w: %s", ErrActorStopped, p.pid.ID)})
	}
}

// failPending rejects every Ask still queued when the process exits.
func (p *process) failPending() {
	for {
		select {
		case envelope := <-p.mailbox:
			p.reject(envelope)
		default:
			return
		}
	}
}

// invokeReceive calls the actor's Receive method within a protected context.
// Asks are completed once Receive returns, even if the actor never replied.
func (p *process) invokeReceive(envelope *messageEnvelope) {
	ctx := &actorContext{
		engine:    p.engine,
		self:      p.pid,
		sender:    envelope.Sender,
		message:   envelope.Message,
		requestID: envelope.RequestID,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("pid", p.pid.ID).Interface("panic", r).Bytes("stack", debug.Stack()).
				Msgf("actor panicked during Receive(%T)", envelope.Message)
			if ctx.requestID != "" && !ctx.replied {
				ctx.replied = true
				p.engine.resolve(ctx.requestID, futureResponse{Err: fmt.Errorf("%w: %v", ErrReceivePanicked, r)})
			}
			return
		}
		if ctx.requestID != "" && !ctx.replied {
			ctx.Reply(nil)
		}
	}()

	p.actor.Receive(ctx)
}
