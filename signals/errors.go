package signals

import "errors"

var (
	// ErrUnknownSignal is returned by Deliver for a name with no receiver.
	ErrUnknownSignal = errors.New("no receiver registered for signal")
	// ErrReceiverClosed is returned by Deliver once the hub or receiver is closed.
	ErrReceiverClosed = errors.New("signal receiver closed")
	// ErrNoSink is returned by Emit on a hub built without a sink.
	ErrNoSink = errors.New("no outbound sink configured")
)
