package config

// Config is the on-disk configuration of crierd.
//
// Durations and intervals are strings: Go durations ("10s"), HH:MM ("00:50")
// or, for task intervals only, "@every <duration>".
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Systemd SystemdConfig  `json:"systemd"`
	Diag    DiagConfig     `json:"diag,omitempty"`

	// ShutdownTimeout bounds the whole Stop sequence. Default: 10s.
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`

	// Tasks replaces the stock task set when non-empty.
	Tasks []TaskConfig `json:"tasks,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional failure journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./crierd_journal" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retention   string `json:"retention,omitempty"`    // Go duration string (sqlite)
}

// SystemdConfig toggles sd_notify integration. Both are no-ops outside systemd.
type SystemdConfig struct {
	Notify   bool `json:"notify"`
	Watchdog bool `json:"watchdog"`
}

// DiagConfig controls the optional diagnostics HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type DiagConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:6060"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// Task kinds.
const (
	KindCrier  = "crier"
	KindBroken = "broken"
)

type TaskConfig struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Interval string `json:"interval"`
	// Message is used by kind "crier"; %s is replaced by the current time.
	Message string `json:"message,omitempty"`
	// Spins is used by kind "broken". Default: 1000.
	Spins int `json:"spins,omitempty"`
	// Enabled is a pointer so an omitted value means true.
	Enabled *bool `json:"enabled,omitempty"`
}

func (t TaskConfig) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }
