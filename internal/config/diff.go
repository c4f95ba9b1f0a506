package config

import (
	"reflect"
	"sort"
	"strings"

	logx "crierd/pkg/logx"
)

// ChangeSummary describes what differs between two configs.
type ChangeSummary struct {
	// Sections lists the changed top-level sections, sorted.
	Sections []string
	// Fields are safe structured attrs for logging.
	Fields []logx.Field
	// Tasks lists task names that were added, removed or changed.
	Tasks []string
	// RestartRequired is set when a change only takes effect on restart.
	RestartRequired bool
}

// Live sections are applied without a restart.
var liveSections = map[string]bool{"logging": true}

// SummarizeConfigChange compares oldCfg and newCfg. Nil means an empty config.
func SummarizeConfigChange(oldCfg, newCfg *Config) ChangeSummary {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var s ChangeSummary

	if oldCfg.Logging != newCfg.Logging {
		s.Sections = append(s.Sections, "logging")
		s.Fields = append(s.Fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	var oStore, nStore StorageConfig
	if oldCfg.Storage != nil {
		oStore = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nStore = *newCfg.Storage
	}
	if strings.TrimSpace(oStore.Driver) != strings.TrimSpace(nStore.Driver) ||
		strings.TrimSpace(oStore.Path) != strings.TrimSpace(nStore.Path) ||
		strings.TrimSpace(oStore.BusyTimeout) != strings.TrimSpace(nStore.BusyTimeout) ||
		strings.TrimSpace(oStore.Retention) != strings.TrimSpace(nStore.Retention) {
		s.Sections = append(s.Sections, "storage")
		s.Fields = append(s.Fields,
			logx.String("storage.driver", strings.TrimSpace(nStore.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nStore.Path) != ""),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		s.Sections = append(s.Sections, "systemd")
		s.Fields = append(s.Fields,
			logx.Bool("systemd.notify", newCfg.Systemd.Notify),
			logx.Bool("systemd.watchdog", newCfg.Systemd.Watchdog),
		)
	}

	// Never log the token itself.
	if oldCfg.Diag != newCfg.Diag {
		s.Sections = append(s.Sections, "diag")
		s.Fields = append(s.Fields,
			logx.Bool("diag.enabled", newCfg.Diag.Enabled),
			logx.String("diag.addr", strings.TrimSpace(newCfg.Diag.Addr)),
			logx.Bool("diag.token_set", strings.TrimSpace(newCfg.Diag.Token) != ""),
		)
	}

	if strings.TrimSpace(oldCfg.ShutdownTimeout) != strings.TrimSpace(newCfg.ShutdownTimeout) {
		s.Sections = append(s.Sections, "shutdown_timeout")
		s.Fields = append(s.Fields, logx.String("shutdown_timeout", strings.TrimSpace(newCfg.ShutdownTimeout)))
	}

	s.Tasks = diffTasks(oldCfg.EffectiveTasks(), newCfg.EffectiveTasks())
	if len(s.Tasks) > 0 {
		s.Sections = append(s.Sections, "tasks")
		s.Fields = append(s.Fields,
			logx.Int("tasks.changed_count", len(s.Tasks)),
			logx.String("tasks.changed", strings.Join(s.Tasks, ",")),
		)
	}

	sort.Strings(s.Sections)
	for _, sec := range s.Sections {
		if !liveSections[sec] {
			s.RestartRequired = true
			break
		}
	}
	return s
}

func diffTasks(oldT, newT []TaskConfig) []string {
	index := func(ts []TaskConfig) map[string]TaskConfig {
		m := make(map[string]TaskConfig, len(ts))
		for _, t := range ts {
			t.Enabled = nil
			m[strings.TrimSpace(t.Name)] = t
		}
		return m
	}
	om, nm := index(oldT), index(newT)

	set := map[string]struct{}{}
	for k := range om {
		set[k] = struct{}{}
	}
	for k := range nm {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, oOK := om[name]
		n, nOK := nm[name]
		if oOK != nOK || !reflect.DeepEqual(o, n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
