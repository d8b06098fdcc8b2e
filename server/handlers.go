// File: server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"github.com/lguibr/signalhub/signals"
)

const healthAskTimeout = 500 * time.Millisecond

// HandleSubscribe registers the connection with the broadcaster and feeds
// every inbound frame to the hub until the connection ends.
func (s *Server) HandleSubscribe() func(ws *websocket.Conn) {
	return func(ws *websocket.Conn) {
		clientID := uuid.NewString()
		remote := "unknown"
		if req := ws.Request(); req != nil {
			remote = req.RemoteAddr
		}
		logger := s.log.With().Str("client", clientID).Str("remote", remote).Logger()

		s.engine.Send(s.broadcasterPID, AddClient{ID: clientID, Conn: ws}, nil)
		s.metrics.ConnectionOpened()
		logger.Debug().Msg("front-end connected")

		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("subscribe handler panicked")
			}
			s.engine.Send(s.broadcasterPID, RemoveClient{ID: clientID}, nil)
			s.metrics.ConnectionClosed()
			_ = ws.Close()
			logger.Debug().Msg("front-end disconnected")
		}()

		s.readLoop(ws, logger)
	}
}

// readLoop decodes envelopes from a single connection. Any read error ends it.
func (s *Server) readLoop(ws *websocket.Conn, logger zerolog.Logger) {
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}

		var env signals.Envelope
		if err := websocket.JSON.Receive(ws, &env); err != nil {
			switch {
			case isClosedErr(err):
				logger.Trace().Err(err).Msg("connection closed")
			case isTimeoutErr(err):
				logger.Info().Dur("timeout", s.cfg.ReadTimeout).Msg("read timeout, dropping connection")
			default:
				logger.Warn().Err(err).Msg("invalid frame, dropping connection")
			}
			return
		}

		if env.Signal == "" {
			logger.Warn().Msg("frame without signal name ignored")
			continue
		}

		if err := s.hub.Deliver(env); err != nil {
			if signals.IsUnknownSignal(err) {
				logger.Debug().Str("signal", env.Signal).Msg("no receiver for signal")
			} else {
				logger.Warn().Err(err).Str("signal", env.Signal).Msg("signal dropped")
			}
		}
	}
}

// HandleHealth reports liveness plus actor and connection counts.
func (s *Server) HandleHealth() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := struct {
			Status  string `json:"status"`
			Actors  int    `json:"actors"`
			Clients int    `json:"clients"`
		}{
			Status: "ok",
			Actors: s.engine.ActorCount(),
		}

		code := http.StatusOK
		reply, err := s.engine.Ask(s.broadcasterPID, ClientCountRequest{}, healthAskTimeout)
		if n, ok := reply.(int); err == nil && ok {
			status.Clients = n
		} else {
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			s.log.Warn().Err(err).Msg("broadcaster did not answer health check")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.log.Debug().Err(err).Msg("writing health response")
		}
	}
}

func isClosedErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe")
}

func isTimeoutErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
