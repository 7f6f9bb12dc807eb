package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jautolock/internal/clock"
	"jautolock/internal/config"
	"jautolock/internal/control"
	"jautolock/internal/eventbus"
	"jautolock/internal/idle"
	"jautolock/internal/reconcile"
	"jautolock/internal/runtime/supervisor"
	"jautolock/internal/storage"
	"jautolock/internal/task"
	logx "jautolock/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Options configures New. Zero-valued collaborators get their production
// implementations.
type Options struct {
	// ConfigPath is the config file; empty means discovery.
	ConfigPath string
	// Socket overrides control.socket.
	Socket string

	Clock    clock.Clock
	Source   idle.Source
	Notifier Notifier
}

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	clock    clock.Clock
	src      idle.Source
	engine   *reconcile.Engine
	runner   *task.Runner
	ctl      *control.Server
	notifier Notifier

	// Owned by the driver loop.
	cfg      *config.Config
	tasks    task.List
	nextWake time.Duration

	requests  chan request
	loopDone  chan struct{}
	exitAsked atomic.Bool
	startedAt time.Time
	stopOnce  sync.Once
}

func New(opts Options) (*App, error) {
	path := opts.ConfigPath
	discovered := false
	if path == "" {
		p, err := config.Discover()
		if err != nil {
			return nil, fmt.Errorf("config discovery: %w", err)
		}
		path, discovered = p, p != ""
	}

	cfgm := config.NewManager(path)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	switch {
	case path == "":
		log.Warn("no config file found; running without tasks", logx.Any("searched", config.Candidates()))
	case discovered:
		log.Info("config discovered", logx.String("path", path))
	}

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if store != nil {
		log.Info("run history enabled", logx.String("driver", sc.Driver))
	}

	src := opts.Source
	if src == nil {
		if src, err = idle.Open(cfg.Idle.Source); err != nil {
			closeStore(store)
			return nil, err
		}
	}
	policy, err := idle.ParsePolicy(cfg.Idle.OnError)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	src = idle.WithFallback(src, policy, log.With(logx.String("comp", "idle")))

	engOpts, err := mapEngineOptions(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = systemdNotifier{}
	}

	a := &App{
		cfgm:     cfgm,
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		bus:      bus,
		store:    store,
		clock:    clk,
		src:      src,
		engine:   reconcile.New(src, engOpts, log),
		runner:   task.NewRunner(mapRunnerConfig(cfg), log, bus),
		notifier: notifier,
		cfg:      cfg,
		tasks:    mapTasks(cfg),
		requests: make(chan request),
		loopDone: make(chan struct{}),
	}
	if cfg.Control.Enabled {
		sock := opts.Socket
		if strings.TrimSpace(sock) == "" {
			sock = cfg.Control.Socket
		}
		a.ctl = control.NewServer(control.SocketPath(sock), a, log)
	}
	return a, nil
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// Done is closed when the daemon stops on its own (exit command or fatal
// error) or the start context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error (ClockError, IdleQueryError, control
// socket failure), if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Reason classifies a stop that was not caused by a signal.
func (a *App) Reason() StopReason {
	switch {
	case a.Err() != nil:
		return StopFatalError
	case a.exitAsked.Load():
		return StopExitCommand
	default:
		return StopUnknown
	}
}

func (a *App) ControlSocket() string {
	if a.ctl == nil {
		return ""
	}
	return a.ctl.Path()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.startedAt = time.Now()
	a.runner.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.record", func(c context.Context) {
		defer unsub()
		a.record(c, events)
	})

	a.sup.GoRestart("config.watch", 5*time.Second, a.cfgm.Watch)

	if a.ctl != nil {
		a.sup.Go("control.serve", a.ctl.Serve)
	}

	a.sup.Go("loop", func(c context.Context) error {
		defer close(a.loopDone)
		err := a.run(c)
		if err == nil && a.exitAsked.Load() {
			a.sup.Cancel()
		}
		return err
	})

	a.notify(daemon.SdNotifyReady)
	a.notify(statusLine(false, len(a.tasks)))
	a.log.Info("daemon started",
		logx.Int("tasks", len(a.tasks)),
		logx.String("idle_source", a.src.Name()),
		logx.String("config", a.cfgm.Path()),
		logx.String("socket", a.ControlSocket()),
	)
	return nil
}

func (a *App) notify(state string) {
	if err := a.notifier.Notify(state); err != nil {
		a.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}

// Stop shuts the daemon down. Only the first call does any work.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.stopOnce.Do(func() { a.stop(ctx, reason) })
	return a.Err()
}

func (a *App) stop(ctx context.Context, reason StopReason) {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify(daemon.SdNotifyStopping)

	a.sup.Cancel()

	// step bounds one shutdown action so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("runner", 3*time.Second, a.runner.Close)
	step("supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if err != nil && err == a.sup.Err() {
			// Already reported through Err.
			return nil
		}
		return err
	})
	step("idle", time.Second, func(context.Context) error { return a.src.Close() })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	if err := a.Err(); err != nil {
		a.log.Error("stopped after fatal error", logx.Err(err))
	} else {
		a.log.Info("stopped")
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
