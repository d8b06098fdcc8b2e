package signals

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lguibr/signalhub/metrics"
)

const defaultBufferSize = 64

// Sink delivers outbound signals to the front-end.
type Sink interface {
	Publish(env Envelope) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(env Envelope) error

// Publish calls f(env).
func (f SinkFunc) Publish(env Envelope) error { return f(env) }

// Hub routes inbound signals to their per-type receivers and hands outbound
// signals to the sink.
type Hub struct {
	mu         sync.RWMutex
	receivers  map[string]*Receiver
	closed     bool
	sink       Sink
	bufferSize int
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the initial capacity of each receiver queue.
// Queues grow past it; nothing is dropped.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithMetrics records deliveries and emissions.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithLogger overrides the global logger.
func WithLogger(l zerolog.Logger) HubOption {
	return func(h *Hub) {
		h.log = l
	}
}

// NewHub creates a hub publishing outbound signals to sink.
func NewHub(sink Sink, opts ...HubOption) *Hub {
	h := &Hub{
		receivers:  make(map[string]*Receiver),
		sink:       sink,
		bufferSize: defaultBufferSize,
		log:        log.Logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With().Str("component", "hub").Logger()
	return h
}

// Receiver returns the receiver for the named signal, creating it on first use.
// After Close the returned receiver is already closed.
func (h *Hub) Receiver(name string) *Receiver {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.receivers[name]; ok {
		return r
	}
	r := newReceiver(name, h.bufferSize)
	if h.closed {
		r.Close()
	}
	h.receivers[name] = r
	return r
}

// Deliver routes an inbound envelope to the receiver registered for its signal.
func (h *Hub) Deliver(env Envelope) error {
	h.mu.RLock()
	r, ok := h.receivers[env.Signal]
	h.mu.RUnlock()

	if !ok {
		h.metrics.ObserveReceived(metrics.UnknownSignal, metrics.ResultUnknown)
		return fmt.Errorf("%w: %q", ErrUnknownSignal, env.Signal)
	}

	if err := r.push(env); err != nil {
		h.metrics.ObserveReceived(env.Signal, metrics.ResultDropped)
		return fmt.Errorf("deliver %s: %w", env.Signal, err)
	}

	h.metrics.ObserveReceived(env.Signal, metrics.ResultDelivered)
	h.log.Trace().Str("signal", env.Signal).Msg("signal delivered")
	return nil
}

// Emit marshals payload and hands the signal to the sink.
func (h *Hub) Emit(name string, payload interface{}) error {
	if h.sink == nil {
		return ErrNoSink
	}

	env, err := NewEnvelope(name, payload)
	if err != nil {
		return err
	}

	if err := h.sink.Publish(env); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}

	h.metrics.ObserveEmitted(name)
	h.log.Trace().Str("signal", name).Msg("signal emitted")
	return nil
}

// Close closes every receiver. Queued signals remain receivable.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, r := range h.receivers {
		r.Close()
	}
}

// IsUnknownSignal reports whether err came from delivering an unregistered signal.
func IsUnknownSignal(err error) bool {
	return errors.Is(err, ErrUnknownSignal)
}
