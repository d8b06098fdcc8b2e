package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/lguibr/signalhub/utils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

// Flags holds values shared by the commands.
type Flags struct {
	LogLevel   string
	ConfigPath string

	// serve
	Addr     string
	Greeting string

	// hello
	URL     string
	Origin  string
	Count   int
	Timeout time.Duration
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newApp(&Flags{}).Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("signalhub failed")
	}
}

func newApp(flags *Flags) *cli.Command {
	return &cli.Command{
		Name:    utils.AppName,
		Usage:   "Signal bridge answering front-end hello requests from an actor",
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars(utils.EnvVar("LOG_LEVEL")),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a YAML config file",
				Sources:     cli.EnvVars(utils.EnvVar("CONFIG")),
				Destination: &flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			level, err := zerolog.ParseLevel(flags.LogLevel)
			if err != nil {
				return ctx, fmt.Errorf("failed to parse log level: %w", err)
			}

			log.Logger = log.Level(level)

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the websocket bridge and the greeting responder",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "addr",
						Usage:       "listen address (overrides config)",
						Sources:     cli.EnvVars(utils.EnvVar("ADDR")),
						Destination: &flags.Addr,
					},
					&cli.StringFlag{
						Name:        "greeting",
						Usage:       "greeting text sent back for every hello request (overrides config)",
						Sources:     cli.EnvVars(utils.EnvVar("GREETING")),
						Destination: &flags.Greeting,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runServe(ctx, flags)
				},
			},
			{
				Name:  "hello",
				Usage: "Send hello requests to a running bridge and print the greetings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "url",
						Usage:       "websocket URL of the bridge",
						Value:       "ws://localhost" + utils.DefaultAddr + "/subscribe",
						Destination: &flags.URL,
					},
					&cli.StringFlag{
						Name:        "origin",
						Usage:       "origin header sent on connect",
						Value:       utils.DefaultOrigin,
						Destination: &flags.Origin,
					},
					&cli.IntFlag{
						Name:        "count",
						Aliases:     []string{"n"},
						Usage:       "number of hello requests",
						Value:       1,
						Destination: &flags.Count,
					},
					&cli.DurationFlag{
						Name:        "timeout",
						Usage:       "how long to wait for each greeting",
						Value:       5 * time.Second,
						Destination: &flags.Timeout,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runHello(ctx, flags, os.Stdout)
				},
			},
		},
	}
}
