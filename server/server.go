// File: server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"

	"github.com/lguibr/signalhub/bollywood"
	"github.com/lguibr/signalhub/metrics"
	"github.com/lguibr/signalhub/signals"
	"github.com/lguibr/signalhub/utils"
)

// Server bridges front-end websocket connections to the signal hub.
type Server struct {
	engine         *bollywood.Engine
	hub            *signals.Hub
	broadcasterPID *bollywood.PID
	metrics        *metrics.Metrics
	cfg            utils.Config
	log            zerolog.Logger
}

// New creates a server. The broadcaster must already be spawned on engine.
func New(engine *bollywood.Engine, hub *signals.Hub, broadcasterPID *bollywood.PID, cfg utils.Config, m *metrics.Metrics) *Server {
	return &Server{
		engine:         engine,
		hub:            hub,
		broadcasterPID: broadcasterPID,
		metrics:        m,
		cfg:            cfg,
		log:            log.Logger.With().Str("component", "server").Logger(),
	}
}

// Handler returns the HTTP routes of the bridge.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.SubscribePath, websocket.Handler(s.HandleSubscribe()))
	mux.HandleFunc(s.cfg.HealthPath, s.HandleHealth())
	mux.Handle(s.cfg.MetricsPath, s.metrics.Handler())
	return mux
}

// Run serves on cfg.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Str("subscribe", s.cfg.SubscribePath).Msg("signal bridge listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info().Msg("shutting down signal bridge")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
