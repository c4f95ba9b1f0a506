package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crierd/internal/config"
	"crierd/internal/diag"
	"crierd/internal/eventbus"
	"crierd/internal/runtime/supervisor"
	"crierd/internal/sdnotify"
	"crierd/internal/storage"
	"crierd/internal/task/manager"
	logx "crierd/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log    logx.Logger
	logs   *logx.Service
	bus    eventbus.Bus
	store  storage.Store
	notify *sdnotify.Notifier

	mgr  *manager.Manager
	diag *diag.Server

	shutdownTimeout time.Duration
}

// New loads the config and wires every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(config.Validator)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store = st
		appLog.Info("failure journal enabled", logx.String("driver", sc.Driver))
	}

	notify := sdnotify.New(mapNotifyConfig(cfg), log)

	taskLog := log.With(logx.String("comp", "task"))
	tasks, err := buildTasks(cfg, taskLog, store)
	if err == nil {
		if hb := notify.Heartbeat(); hb != nil {
			tasks = append(tasks, hb)
		}
	}
	var mgr *manager.Manager
	if err == nil {
		mgr, err = manager.NewBuilder(
			manager.WithLogger(log.With(logx.String("comp", "task.manager"))),
			manager.WithBus(bus),
		).Add(tasks...).Build()
	}
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = logSvc.Close()
		return nil, fmt.Errorf("build tasks: %w", err)
	}

	return &App{
		cfgPath:         cfgPath,
		cfgm:            cfgm,
		log:             appLog,
		logs:            logSvc,
		bus:             bus,
		store:           store,
		notify:          notify,
		mgr:             mgr,
		diag:            diag.New(mapDiagConfig(cfg), mgr, store, log),
		shutdownTimeout: cfg.ShutdownTimeoutOrDefault(),
	}, nil
}

func (a *App) Manager() *manager.Manager { return a.mgr }

// ShutdownTimeout is the configured bound for the whole Stop sequence.
func (a *App) ShutdownTimeout() time.Duration { return a.shutdownTimeout }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	// Subscribe before the manager starts so its first events are seen.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		a.logEvents(c, events)
	})

	if err := a.mgr.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}

	// Diagnostics are optional; a bind failure never stops the tasks.
	if err := a.diag.Start(a.sup.Context()); err != nil {
		a.log.Warn("diag server not started", logx.Err(err))
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.notify.Ready()
	a.notify.Status(fmt.Sprintf("running %d tasks", a.mgr.Len()))
	a.log.Info("app started", logx.Int("tasks", a.mgr.Len()), logx.String("config", a.cfgPath))
	return nil
}

func (a *App) logEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
			if fe, ok := e.Data.(manager.FailureEvent); ok {
				fields = append(fields, logx.String("task", fe.Task), logx.Bool("panic", fe.Panic))
			}
			a.log.Trace("event", fields...)
		}
	}
}

// reloadLoop applies published configs. Only logging is applied live; other
// changes are reported as needing a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest pending config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}

			sum := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sum.Sections) == 0 {
				a.log.Info("config reloaded (no changes)")
				continue
			}

			a.logs.Apply(mapLogConfig(newCfg))

			fields := append([]logx.Field{logx.String("changed", strings.Join(sum.Sections, ","))}, sum.Fields...)
			a.log.Info("config reloaded", fields...)
			if sum.RestartRequired {
				a.log.Warn("config change requires a restart to take effect",
					logx.String("changed", strings.Join(sum.Sections, ",")),
					logx.String("tasks", strings.Join(sum.Tasks, ",")),
				)
			}
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	step := a.stepper(ctx)

	step("sdnotify", time.Second, func(context.Context) error {
		a.notify.Stopping()
		return nil
	})
	step("tasks", a.shutdownTimeout, func(context.Context) error {
		a.mgr.Stop()
		return nil
	})
	a.logSummary()

	step("diag", time.Second, func(c context.Context) error {
		a.diag.Stop(c)
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Stop(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) logSummary() {
	snap := a.mgr.Snapshot()
	for _, ti := range snap.Tasks {
		a.log.Info("task summary",
			logx.String("task", ti.Name),
			logx.Duration("interval", ti.Interval),
			logx.Uint64("executions", ti.Executions),
			logx.Uint64("failures", ti.Failures),
			logx.Uint64("handler_panics", ti.HandlerPanics),
			logx.String("last_error", ti.LastError),
		)
	}
}
