package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"crierd/internal/task/crier"
)

// Defaults applied when fields are omitted.
const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
)

// DefaultTasks is the stock task set used when the config lists none.
func DefaultTasks() []TaskConfig {
	return []TaskConfig{
		{Name: crier.TownName, Kind: KindCrier, Interval: crier.TownInterval.String(), Message: crier.TownMessage},
		{Name: crier.WolfName, Kind: KindCrier, Interval: crier.WolfInterval.String(), Message: crier.WolfMessage},
		{Name: crier.LazyName, Kind: KindCrier, Interval: crier.LazyInterval.String(), Message: crier.LazyMessage},
		{Name: crier.BrokenName, Kind: KindBroken, Interval: crier.BrokenInterval.String(), Spins: crier.DefaultSpins},
	}
}

// EffectiveTasks returns the enabled tasks, or DefaultTasks when none are configured.
func (c *Config) EffectiveTasks() []TaskConfig {
	src := c.Tasks
	if len(src) == 0 {
		src = DefaultTasks()
	}
	out := make([]TaskConfig, 0, len(src))
	for _, t := range src {
		if t.IsEnabled() {
			out = append(out, t)
		}
	}
	return out
}

var validLevels = map[string]struct{}{
	"": {}, "trace": {}, "debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {},
}

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if _, ok := validLevels[strings.ToLower(strings.TrimSpace(cfg.Logging.Level))]; !ok {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path is required when file logging is enabled"))
	}
	if _, err := ParseDurationField("shutdown_timeout", cfg.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}

	if d := cfg.Diag; d.Enabled && strings.TrimSpace(d.Addr) != "" {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(d.Addr)); err != nil {
			errs = append(errs, fmt.Errorf("diag.addr: %w", err))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				errs = append(errs, fmt.Errorf("storage.path is required for driver %q", s.Driver))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField("storage.retention", s.Retention); err != nil {
			errs = append(errs, err)
		}
	}

	seen := map[string]int{}
	for i, t := range cfg.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		name := strings.TrimSpace(t.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", path))
		} else if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q duplicates tasks[%d]", path, name, prev))
		} else {
			seen[name] = i
		}
		switch t.Kind {
		case KindCrier:
			if strings.TrimSpace(t.Message) == "" {
				errs = append(errs, fmt.Errorf("%s.message is required for kind %q", path, t.Kind))
			}
		case KindBroken:
			if t.Spins < 0 {
				errs = append(errs, fmt.Errorf("%s.spins must be >= 0", path))
			}
		default:
			errs = append(errs, fmt.Errorf("%s.kind: unknown kind %q (want %q or %q)", path, t.Kind, KindCrier, KindBroken))
		}
		if _, _, err := ParseInterval(t.Interval); err != nil {
			errs = append(errs, fmt.Errorf("%s.interval: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// Validator adapts Validate to ConfigManager.SetValidator.
func Validator(_ context.Context, cfg *Config) error { return Validate(cfg) }
