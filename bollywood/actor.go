// File: bollywood/actor.go
package bollywood

// Actor is anything that can process messages delivered by the Engine.
// Receive is always called from the actor's own goroutine, one message at a time.
type Actor interface {
	Receive(ctx Context)
}
