package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jautolock/internal/app"

	"github.com/urfave/cli"
)

const stopTimeout = 10 * time.Second

func runDaemon(c *cli.Context) error {
	if c.NArg() > 0 {
		return cli.NewExitError(fmt.Sprintf("unknown command %q", c.Args().First()), 2)
	}

	a, err := app.New(app.Options{
		ConfigPath: c.GlobalString("config"),
		Socket:     c.GlobalString("socket"),
	})
	if err != nil {
		return cli.NewExitError("fatal: "+err.Error(), 1)
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := a.Start(context.Background()); err != nil {
		return cli.NewExitError("fatal start: "+err.Error(), 1)
	}

	var reason app.StopReason
	select {
	case s := <-sigs:
		reason = app.StopSIGINT
		if s == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = a.Reason()
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := a.Stop(ctx, reason); err != nil {
		return cli.NewExitError("fatal: "+err.Error(), 1)
	}
	return nil
}
