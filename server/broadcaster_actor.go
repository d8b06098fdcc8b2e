// File: server/broadcaster_actor.go
package server

import (
	"errors"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"

	"github.com/lguibr/signalhub/bollywood"
	"github.com/lguibr/signalhub/signals"
)

// ErrNoBroadcaster is returned by Publish on a sink without an engine or broadcaster.
var ErrNoBroadcaster = errors.New("broadcast sink has no broadcaster")

// BroadcasterActor owns the set of front-end connections and writes outbound signals to them.
type BroadcasterActor struct {
	clients      map[string]*websocket.Conn
	selfPID      *bollywood.PID
	writeTimeout time.Duration
	log          zerolog.Logger
}

// NewBroadcasterProducer creates a producer for BroadcasterActor. A client
// that cannot take a frame within writeTimeout is dropped; zero disables the limit.
func NewBroadcasterProducer(writeTimeout time.Duration) bollywood.Producer {
	return func() bollywood.Actor {
		return &BroadcasterActor{
			clients:      make(map[string]*websocket.Conn),
			writeTimeout: writeTimeout,
			log:          log.Logger.With().Str("component", "broadcaster").Logger(),
		}
	}
}

// Receive handles messages for the BroadcasterActor.
func (a *BroadcasterActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("broadcaster panicked")
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case bollywood.Started:

	case AddClient:
		if msg.Conn != nil {
			a.clients[msg.ID] = msg.Conn
		}

	case RemoveClient:
		delete(a.clients, msg.ID)

	case Broadcast:
		a.broadcast(msg.Envelope)

	case ClientCountRequest:
		ctx.Reply(len(a.clients))

	case bollywood.Stopping:
		a.closeAllConnections()

	case bollywood.Stopped:

	default:
		a.log.Warn().Str("pid", a.selfPID.String()).Msgf("unknown message type %T", msg)
	}
}

// broadcast writes env to every client, dropping those whose write fails.
func (a *BroadcasterActor) broadcast(env signals.Envelope) {
	for id, ws := range a.clients {
		if a.writeTimeout > 0 {
			_ = ws.SetWriteDeadline(time.Now().Add(a.writeTimeout))
		}
		if err := websocket.JSON.Send(ws, env); err != nil {
			switch {
			case isTimeoutErr(err):
				a.log.Warn().Str("client", id).Dur("timeout", a.writeTimeout).Msg("client not reading, dropping client")
			case !isClosedErr(err):
				a.log.Warn().Err(err).Str("client", id).Str("signal", env.Signal).Msg("write failed, dropping client")
			}
			delete(a.clients, id)
			_ = ws.Close()
		}
	}
}

func (a *BroadcasterActor) closeAllConnections() {
	if len(a.clients) > 0 {
		a.log.Debug().Int("clients", len(a.clients)).Msg("closing connections")
	}
	for id, ws := range a.clients {
		_ = ws.Close()
		delete(a.clients, id)
	}
}

// BroadcastSink publishes outbound signals through a BroadcasterActor.
// Publishing is fire-and-forget.
type BroadcastSink struct {
	engine *bollywood.Engine
	pid    *bollywood.PID
}

// NewBroadcastSink creates a signals.Sink backed by the broadcaster at pid.
func NewBroadcastSink(engine *bollywood.Engine, pid *bollywood.PID) *BroadcastSink {
	return &BroadcastSink{engine: engine, pid: pid}
}

// Publish queues env for every connected client.
func (s *BroadcastSink) Publish(env signals.Envelope) error {
	if s == nil || s.engine == nil || s.pid == nil {
		return ErrNoBroadcaster
	}
	s.engine.Send(s.pid, Broadcast{Envelope: env}, nil)
	return nil
}

var _ signals.Sink = (*BroadcastSink)(nil)
