package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/lguibr/signalhub/bollywood"
	"github.com/lguibr/signalhub/greeter"
	"github.com/lguibr/signalhub/metrics"
	"github.com/lguibr/signalhub/server"
	"github.com/lguibr/signalhub/signals"
	"github.com/lguibr/signalhub/utils"
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(flags *Flags) (utils.Config, error) {
	cfg, err := utils.LoadConfig(flags.ConfigPath)
	if err != nil {
		return utils.Config{}, err
	}
	if flags.Addr != "" {
		cfg.Addr = flags.Addr
	}
	if flags.Greeting != "" {
		cfg.Greeting = flags.Greeting
	}
	if err := cfg.Validate(); err != nil {
		return utils.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, flags *Flags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	engine := bollywood.NewEngine()
	defer engine.Shutdown(cfg.ShutdownTimeout)

	broadcasterPID := engine.Spawn(bollywood.NewProps(server.NewBroadcasterProducer(cfg.WriteTimeout)))
	hub := signals.NewHub(
		server.NewBroadcastSink(engine, broadcasterPID),
		signals.WithBufferSize(cfg.ReceiverBuffer),
		signals.WithMetrics(m),
	)

	task, err := greeter.New(engine, hub,
		greeter.WithGreeting(cfg.Greeting),
		greeter.WithMetrics(m),
	).Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("start greeter: %w", err)
	}

	srvErr := server.New(engine, hub, broadcasterPID, cfg, m).Run(ctx)

	// No more inbound signals: let the responder drain and exit.
	hub.Close()
	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := task.Wait(waitCtx); err != nil {
		log.Warn().Err(err).Msg("greeter did not drain before shutdown")
		task.Stop()
	}

	return srvErr
}
