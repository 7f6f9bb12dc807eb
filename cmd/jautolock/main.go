package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

const description = `jautolock runs commands after the user has been idle for a while.

Without a command it runs the daemon. The other commands talk to a running
daemon over its control socket.`

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "jautolock:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:        "jautolock",
		HelpName:    "jautolock",
		Usage:       "fire commands on user inactivity",
		UsageText:   "jautolock [--config PATH] [command] [arguments...]",
		Description: description,
		Flags:       globalFlags,
		Action:      runDaemon,
		Commands: []cli.Command{
			{
				Name:   "daemon",
				Usage:  "run the scheduler in the foreground",
				Action: runDaemon,
			},
			{
				Name:      "now",
				Aliases:   []string{"firenow"},
				Usage:     "fire a task immediately",
				ArgsUsage: "NAME",
				Action:    now,
			},
			{
				Name:   "busy",
				Usage:  "treat the user as active until unbusy",
				Action: busy,
			},
			{
				Name:   "unbusy",
				Usage:  "resume idle tracking",
				Action: unbusy,
			},
			{
				Name:   "exit",
				Usage:  "stop the daemon",
				Action: exit,
			},
			{
				Name:   "status",
				Usage:  "show tasks, busy state and recent runs",
				Action: status,
			},
			{
				Name:      "send",
				Usage:     "send a raw text command",
				ArgsUsage: "TEXT",
				Action:    send,
			},
		},
	}
}

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "config file (default: searched under $XDG_CONFIG_HOME/jautolock)",
		EnvVar: "JAUTOLOCK_CONFIG",
	},
	cli.StringFlag{
		Name:  "socket, s",
		Usage: "control socket (default: $JAUTOLOCK_SOCKET or $XDG_RUNTIME_DIR/jautolock.sock)",
	},
}
