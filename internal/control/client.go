package control

import (
	"context"
	"fmt"
	"net"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
)

// Client talks to a running daemon over its control socket.
type Client struct {
	rpc *jrpc2.Client
}

func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", path, err)
	}
	return &Client{rpc: jrpc2.NewClient(channel.Line(conn, conn), nil)}, nil
}

func (c *Client) Close() error { return c.rpc.Close() }

func (c *Client) call(ctx context.Context, method string, params any) (string, error) {
	var r Reply
	if err := c.rpc.CallResult(ctx, method, params, &r); err != nil {
		return "", fromRPC(err)
	}
	return r.Text, nil
}

// Now fires the named task immediately.
func (c *Client) Now(ctx context.Context, name string) (string, error) {
	return c.call(ctx, "task.now", NameParams{Name: name})
}

func (c *Client) Busy(ctx context.Context) (string, error) {
	return c.call(ctx, "idle.busy", nil)
}

func (c *Client) Unbusy(ctx context.Context) (string, error) {
	return c.call(ctx, "idle.unbusy", nil)
}

func (c *Client) Exit(ctx context.Context) (string, error) {
	return c.call(ctx, "daemon.exit", nil)
}

// Send delivers a raw text command; errors are part of the reply text.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	return c.call(ctx, "daemon.message", MessageParams{Text: text})
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.rpc.CallResult(ctx, "daemon.status", nil, &st); err != nil {
		return nil, fromRPC(err)
	}
	return &st, nil
}
