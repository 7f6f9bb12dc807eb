package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	logx "jautolock/pkg/logx"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"golang.org/x/sync/errgroup"
)

const sessionGrace = 250 * time.Millisecond

// Server exposes a Dispatcher on a unix socket, one line-framed JSON-RPC
// session per connection.
type Server struct {
	path    string
	d       Dispatcher
	log     logx.Logger
	methods handler.Map

	readyOnce sync.Once
	ready     chan struct{}
}

func NewServer(path string, d Dispatcher, log logx.Logger) *Server {
	s := &Server{
		path:  path,
		d:     d,
		log:   log.With(logx.String("comp", "control")),
		ready: make(chan struct{}),
	}
	s.methods = handler.Map{
		"task.now":       handler.New(s.taskNow),
		"idle.busy":      handler.New(s.idleBusy),
		"idle.unbusy":    handler.New(s.idleUnbusy),
		"daemon.exit":    handler.New(s.daemonExit),
		"daemon.status":  handler.New(s.daemonStatus),
		"daemon.message": handler.New(s.daemonMessage),
	}
	return s
}

func (s *Server) Path() string { return s.path }

// Ready is closed once the socket is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

func (s *Server) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	// A previous daemon may have left its socket behind.
	if conn, err := net.Dial("unix", s.path); err == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("control socket %s is in use by another daemon", s.path)
	}
	_ = os.Remove(s.path)
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

// Serve accepts connections until ctx is done, then closes live sessions
// and removes the socket.
func (s *Server) Serve(ctx context.Context) error {
	l, err := s.listen()
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	defer func() {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("control socket cleanup failed", logx.String("path", s.path), logx.Err(err))
		}
	}()
	s.log.Info("control socket listening", logx.String("path", s.path))
	s.readyOnce.Do(func() { close(s.ready) })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return l.Close()
	})
	g.Go(func() error {
		for {
			conn, err := l.Accept()
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("control accept: %w", err)
			}
			g.Go(func() error {
				s.serveConn(gctx, conn)
				return nil
			})
		}
	})
	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	srv := jrpc2.NewServer(s.methods, nil).Start(channel.Line(conn, conn))
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		// Let an in-flight reply (e.g. to daemon.exit) reach the client.
		select {
		case <-done:
		case <-time.After(sessionGrace):
			srv.Stop()
		}
	}()
	err := srv.Wait()
	close(done)
	if err != nil && ctx.Err() == nil {
		s.log.Debug("control session ended", logx.Err(err))
	}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) (Result, error) {
	s.log.Debug("control command", logx.String("cmd", cmd.String()))
	return s.d.Dispatch(ctx, cmd)
}

func (s *Server) simple(ctx context.Context, cmd Command) (*Reply, error) {
	res, err := s.dispatch(ctx, cmd)
	if err != nil {
		return nil, toRPC(err)
	}
	return &Reply{Text: res.Text}, nil
}

func (s *Server) taskNow(ctx context.Context, p *NameParams) (*Reply, error) {
	if p == nil || p.Name == "" {
		return nil, toRPC(&ArgError{Command: "now", Want: "one argument"})
	}
	return s.simple(ctx, Command{Kind: KindNow, Arg: p.Name})
}

func (s *Server) idleBusy(ctx context.Context) (*Reply, error) {
	return s.simple(ctx, Command{Kind: KindBusy})
}

func (s *Server) idleUnbusy(ctx context.Context) (*Reply, error) {
	return s.simple(ctx, Command{Kind: KindUnbusy})
}

func (s *Server) daemonExit(ctx context.Context) (*Reply, error) {
	return s.simple(ctx, Command{Kind: KindExit})
}

func (s *Server) daemonStatus(ctx context.Context) (*Status, error) {
	res, err := s.dispatch(ctx, Command{Kind: KindStatus})
	if err != nil {
		return nil, toRPC(err)
	}
	if res.Status == nil {
		return &Status{}, nil
	}
	return res.Status, nil
}

// daemonMessage answers a raw text command like the plain-text FIFO
// protocol did: failures are part of the reply text, not RPC errors.
func (s *Server) daemonMessage(ctx context.Context, p *MessageParams) (*Reply, error) {
	reply := "Message received."
	text := ""
	if p != nil {
		text = p.Text
	}
	cmd, err := ParseCommand(text)
	if err != nil {
		return &Reply{Text: reply + "\n" + ReplyText(err)}, nil
	}
	res, err := s.dispatch(ctx, cmd)
	if err != nil {
		return &Reply{Text: reply + "\n" + ReplyText(err)}, nil
	}
	if res.Text != "" {
		reply += "\n" + res.Text
	}
	return &Reply{Text: reply}, nil
}
