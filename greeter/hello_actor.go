package greeter

import (
	"github.com/rs/zerolog"

	"github.com/lguibr/signalhub/bollywood"
	"github.com/lguibr/signalhub/signals"
)

// helloActor owns the response side of the exchange.
type helloActor struct {
	greeting string
	emitter  Emitter
	log      zerolog.Logger
}

func newHelloActorProducer(greeting string, emitter Emitter, logger zerolog.Logger) bollywood.Producer {
	return func() bollywood.Actor {
		return &helloActor{
			greeting: greeting,
			emitter:  emitter,
			log:      logger,
		}
	}
}

func (a *helloActor) Receive(ctx bollywood.Context) {
	switch ctx.Message().(type) {
	case bollywood.Started, bollywood.Stopping, bollywood.Stopped:

	case signals.HelloRequest:
		resp := signals.HelloResponse{Message: a.greeting}
		if err := a.emitter.Emit(signals.HelloResponseSignal, resp); err != nil {
			a.log.Debug().Err(err).Msg("hello response not sent")
		}
		ctx.Reply(resp)

	default:
		a.log.Warn().Str("pid", ctx.Self().String()).Msgf("unexpected message %T", ctx.Message())
	}
}
