package bollywood

// Context is handed to Actor.Receive for every message.
type Context interface {
	// Engine returns the engine running the actor.
	Engine() *Engine
	// Self returns the PID of the receiving actor.
	Self() *PID
	// Sender returns the PID of the sender, or nil.
	Sender() *PID
	// Message returns the message being processed.
	Message() interface{}
	// RequestID is non-empty when the message was sent with Ask.
	RequestID() string
	// Reply answers an Ask. Only the first reply is delivered; calls for
	// messages that were not sent with Ask are ignored.
	Reply(response interface{})
}

// actorContext implements Context for one Receive call.
type actorContext struct {
	engine    *Engine
	self      *PID
	sender    *PID
	message   interface{}
	requestID string
	replied   bool
}

func (c *actorContext) Engine() *Engine      { return c.engine }
func (c *actorContext) Self() *PID           { return c.self }
func (c *actorContext) Sender() *PID         { return c.sender }
func (c *actorContext) Message() interface{} { return c.message }
func (c *actorContext) RequestID() string    { return c.requestID }

func (c *actorContext) Reply(response interface{}) {
	if c.requestID == "" || c.replied {
		return
	}
	c.replied = true
	c.engine.resolve(c.requestID, futureResponse{Result: response})
}
