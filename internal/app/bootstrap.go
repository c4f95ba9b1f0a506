package app

import (
	"fmt"
	"strings"

	"crierd/internal/config"
	"crierd/internal/diag"
	"crierd/internal/sdnotify"
	"crierd/internal/storage"
	"crierd/internal/task"
	"crierd/internal/task/crier"
	"crierd/internal/task/handlers"
	logx "crierd/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	level := strings.TrimSpace(cfg.Logging.Level)
	if level == "" {
		level = config.DefaultLogLevel
	}
	return logx.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapDiagConfig(cfg *config.Config) diag.Config {
	return diag.Config{
		Enabled:       cfg.Diag.Enabled,
		Addr:          strings.TrimSpace(cfg.Diag.Addr),
		Token:         strings.TrimSpace(cfg.Diag.Token),
		AllowInsecure: cfg.Diag.AllowInsecure,
	}
}

func mapNotifyConfig(cfg *config.Config) sdnotify.Config {
	return sdnotify.Config{Notify: cfg.Systemd.Notify, Watchdog: cfg.Systemd.Watchdog}
}

// buildTasks turns the configured task list into tasks. Every task logs its
// failures and, when a store is open, journals them too.
func buildTasks(cfg *config.Config, log logx.Logger, store storage.Store) ([]task.Task, error) {
	specs := cfg.EffectiveTasks()
	out := make([]task.Task, 0, len(specs))
	for i, tc := range specs {
		name := strings.TrimSpace(tc.Name)
		interval, _, err := config.ParseInterval(tc.Interval)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d] %q: %w", i, name, err)
		}

		var h task.ErrorHandler = handlers.Log(log, name)
		if store != nil {
			h = handlers.Multi(h, handlers.Journal(store, name, log))
		}
		opts := []crier.Option{
			crier.WithErrorHandler(h),
			crier.WithLogger(log),
		}

		switch tc.Kind {
		case config.KindCrier:
			out = append(out, crier.New(name, tc.Message, interval, opts...))
		case config.KindBroken:
			spins := tc.Spins
			if spins == 0 {
				spins = crier.DefaultSpins
			}
			out = append(out, crier.NewBroken(name, interval, spins, opts...))
		default:
			return nil, fmt.Errorf("tasks[%d] %q: unknown kind %q", i, name, tc.Kind)
		}
	}
	return out, nil
}
