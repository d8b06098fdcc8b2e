package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/lguibr/signalhub/client"
)

var errInvalidCount = errors.New("count must be at least 1")

func runHello(ctx context.Context, flags *Flags, out io.Writer) error {
	if flags.Count < 1 {
		return errInvalidCount
	}

	c, err := client.Dial(flags.URL, flags.Origin)
	if err != nil {
		return err
	}
	defer c.Close()

	for i := 0; i < flags.Count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := c.Hello(flags.Timeout)
		if err != nil {
			return fmt.Errorf("hello %d: %w", i+1, err)
		}
		log.Debug().Int("n", i+1).Msg("greeting received")
		fmt.Fprintln(out, resp.Message)
	}
	return nil
}
