// Package client speaks the signal protocol from the front-end side.
package client

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/net/websocket"

	"github.com/lguibr/signalhub/signals"
)

// ErrClosed is returned by calls on a client after Close.
var ErrClosed = errors.New("client closed")

// Client is a single websocket connection to the bridge.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to the subscribe endpoint at url.
func Dial(url, origin string) (*Client, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Send marshals payload and sends it as the named signal.
func (c *Client) Send(name string, payload interface{}) error {
	if c.conn == nil {
		return ErrClosed
	}
	env, err := signals.NewEnvelope(name, payload)
	if err != nil {
		return err
	}
	if err := websocket.JSON.Send(c.conn, env); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	return nil
}

// Receive waits up to timeout for the next signal. A zero timeout waits forever.
func (c *Client) Receive(timeout time.Duration) (signals.Envelope, error) {
	if c.conn == nil {
		return signals.Envelope{}, ErrClosed
	}
	if timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}

	var env signals.Envelope
	if err := websocket.JSON.Receive(c.conn, &env); err != nil {
		return signals.Envelope{}, fmt.Errorf("receive: %w", err)
	}
	return env, nil
}

// Hello sends one hello request and waits for the next hello response,
// skipping any other signals that arrive first.
func (c *Client) Hello(timeout time.Duration) (signals.HelloResponse, error) {
	if err := c.Send(signals.HelloRequestSignal, signals.HelloRequest{}); err != nil {
		return signals.HelloResponse{}, err
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if timeout > 0 && remaining <= 0 {
			return signals.HelloResponse{}, fmt.Errorf("no %s within %s", signals.HelloResponseSignal, timeout)
		}
		if timeout <= 0 {
			remaining = 0
		}

		env, err := c.Receive(remaining)
		if err != nil {
			return signals.HelloResponse{}, err
		}
		if env.Signal != signals.HelloResponseSignal {
			continue
		}

		var resp signals.HelloResponse
		if err := env.Decode(&resp); err != nil {
			return signals.HelloResponse{}, err
		}
		return resp, nil
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
