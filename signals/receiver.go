package signals

import (
	"context"
	"sync"
)

// Receiver is the dedicated inbound queue of one signal type.
// The queue is unbounded: pushes never block and never drop while the
// receiver is open.
type Receiver struct {
	name string

	mu     sync.Mutex // Protects queue and the closing of done
	queue  []Envelope
	ready  chan struct{} // Holds one token while the queue may be non-empty
	done   chan struct{}
	closed bool
}

func newReceiver(name string, capacity int) *Receiver {
	return &Receiver{
		name:  name,
		queue: make([]Envelope, 0, capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Name returns the signal name served by this receiver.
func (r *Receiver) Name() string { return r.name }

// Len returns the number of queued signals.
func (r *Receiver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Receiver) push(env Envelope) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrReceiverClosed
	}
	r.queue = append(r.queue, env)
	r.mu.Unlock()

	r.notify()
	return nil
}

func (r *Receiver) notify() {
	select {
	case r.ready <- struct{}{}:
	default:
	}
}

func (r *Receiver) pop() (Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return Envelope{}, false
	}
	env := r.queue[0]
	r.queue[0] = Envelope{}
	r.queue = r.queue[1:]
	if len(r.queue) == 0 {
		// Release the backing array once drained.
		r.queue = r.queue[:0:0]
	} else {
		r.notify()
	}
	return env, true
}

// Receive blocks until a signal is available. It returns false once the
// receiver is closed and every queued signal has been handed out, or when
// ctx is done.
func (r *Receiver) Receive(ctx context.Context) (Envelope, bool) {
	for {
		if env, ok := r.pop(); ok {
			return env, true
		}
		if r.Closed() {
			// Pushes that won the race with Close are still queued.
			return r.pop()
		}

		select {
		case <-r.ready:
		case <-r.done:
		case <-ctx.Done():
			return Envelope{}, false
		}
	}
}

// Close marks the producer side as gone. Safe to call more than once.
func (r *Receiver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		close(r.done)
	}
}

// Closed reports whether Close has been called.
func (r *Receiver) Closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
