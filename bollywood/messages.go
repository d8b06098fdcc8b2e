// File: bollywood/messages.go
package bollywood

import "errors"

// --- System Messages ---

// Started is sent to an actor after its goroutine has started.
type Started struct{}

// Stopping is sent to an actor to signal it should prepare to stop.
// No more user messages will be delivered after Stopping.
type Stopping struct{}

// Stopped is sent to an actor just before its goroutine exits.
// This is the final message an actor will receive.
type Stopped struct{}

// --- Errors ---

var (
	ErrEngineStopping  = errors.New("engine is stopping")
	ErrActorNotFound   = errors.New("actor not found")
	ErrActorStopped    = errors.New("actor stopped before replying")
	ErrMailboxFull     = errors.New("actor mailbox full")
	ErrAskTimeout      = errors.New("ask timed out")
	ErrReceivePanicked = errors.New("actor panicked during receive")
)

// --- Message Envelope ---

// messageEnvelope wraps a user message with sender information.
// RequestID is set only for messages sent through Ask.
type messageEnvelope struct {
	Sender    *PID
	Message   interface{}
	RequestID string
}

// futureResponse is used internally to pass Ask results back.
type futureResponse struct {
	Result interface{}
	Err    error
}

func isSystemMessage(message interface{}) bool {
	switch message.(type) {
	case Started, Stopping, Stopped:
		return true
	}
	return false
}
