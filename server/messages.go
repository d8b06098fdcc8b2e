// File: server/messages.go
package server

import (
	"github.com/lguibr/signalhub/signals"
	"golang.org/x/net/websocket"
)

// --- Broadcaster Messages ---

// AddClient registers a front-end connection with the broadcaster.
type AddClient struct {
	ID   string
	Conn *websocket.Conn
}

// RemoveClient unregisters a front-end connection.
type RemoveClient struct {
	ID string
}

// Broadcast sends an outbound signal to every registered connection.
type Broadcast struct {
	Envelope signals.Envelope
}

// ClientCountRequest asks the broadcaster how many connections it holds. Reply is an int.
type ClientCountRequest struct{}
