package bollywood

// Producer creates a fresh actor instance. It is invoked once, inside the
// actor's goroutine, when the actor is spawned.
type Producer func() Actor

// Props is the recipe the Engine uses to spawn an actor.
type Props struct {
	producer    Producer
	mailboxSize int
}

// NewProps wraps a Producer into Props with the default mailbox size.
func NewProps(producer Producer) *Props {
	return &Props{
		producer:    producer,
		mailboxSize: defaultMailboxSize,
	}
}

// WithMailboxSize overrides the mailbox capacity. Non-positive sizes are ignored.
func (p *Props) WithMailboxSize(size int) *Props {
	if size > 0 {
		p.mailboxSize = size
	}
	return p
}

// Produce creates the actor instance.
func (p *Props) Produce() Actor {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer()
}
