package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"jautolock/internal/control"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
)

const callTimeout = 5 * time.Second

func withClient(c *cli.Context, fn func(ctx context.Context, cl *control.Client) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	cl, err := control.Dial(ctx, control.SocketPath(c.GlobalString("socket")))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer cl.Close()

	if err := fn(ctx, cl); err != nil {
		return cli.NewExitError(control.ReplyText(err), 1)
	}
	return nil
}

func printReply(text string, err error) error {
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func now(c *cli.Context) error {
	if c.NArg() != 1 {
		err := &control.ArgError{Command: "now", Want: "one argument"}
		return cli.NewExitError(control.ReplyText(err), 2)
	}
	return withClient(c, func(ctx context.Context, cl *control.Client) error {
		return printReply(cl.Now(ctx, c.Args().First()))
	})
}

func busy(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, cl *control.Client) error {
		return printReply(cl.Busy(ctx))
	})
}

func unbusy(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, cl *control.Client) error {
		return printReply(cl.Unbusy(ctx))
	})
}

func exit(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, cl *control.Client) error {
		return printReply(cl.Exit(ctx))
	})
}

// send passes the arguments through as one text line, like the historical
// single-argument mode.
func send(c *cli.Context) error {
	text := strings.Join(c.Args(), " ")
	if strings.TrimSpace(text) == "" {
		return cli.NewExitError("send expects a message", 2)
	}
	return withClient(c, func(ctx context.Context, cl *control.Client) error {
		return printReply(cl.Send(ctx, text))
	})
}

func status(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, cl *control.Client) error {
		st, err := cl.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	})
}

func printStatus(st *control.Status) {
	fmt.Printf("pid %d, up since %s\n", st.Pid, humanize.Time(st.StartedAt))
	if st.ConfigPath != "" {
		fmt.Printf("config: %s\n", st.ConfigPath)
	}
	fmt.Printf("idle source: %s\n", st.IdleSource)
	switch {
	case st.Busy:
		fmt.Println("busy override: on")
	case st.NextWake > 0:
		fmt.Printf("next check in %s\n", st.NextWake.Round(time.Second))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nTASK\tTIME\tSTATE\tCOMMAND")
	for _, t := range st.Tasks {
		state := "waiting"
		if t.Running {
			state = fmt.Sprintf("running (pid %d, %s)", t.Pid, humanize.Time(t.StartedAt))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Threshold, state, t.Command)
	}
	_ = w.Flush()

	if len(st.Runs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRECENT RUNS\tENDED\tTOOK\tEXIT")
	for _, r := range st.Runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.Task, humanize.Time(r.EndedAt), r.Duration().Round(time.Millisecond), r.ExitCode)
	}
	_ = w.Flush()
}
