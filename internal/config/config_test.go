package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw    string
		want   time.Duration
		source string
	}{
		{raw: "10s", want: 10 * time.Second, source: SourceDuration},
		{raw: "0s", want: 0, source: SourceDuration},
		{raw: " 2m30s ", want: 150 * time.Second, source: SourceDuration},
		{raw: "00:50", want: 50 * time.Minute, source: SourceHHMM},
		{raw: "02:30", want: 150 * time.Minute, source: SourceHHMM},
		{raw: "@every 1m", want: time.Minute, source: SourceEvery},
		{raw: "@every 0s", want: 0, source: SourceEvery},
		{raw: "@every 1500ms", want: 1500 * time.Millisecond, source: SourceEvery},
		{raw: "@every 250ms", want: 250 * time.Millisecond, source: SourceEvery},
		{raw: "every:45s", want: 45 * time.Second, source: SourceDuration},
		{raw: "interval:01:00", want: time.Hour, source: SourceHHMM},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, src, err := ParseInterval(tt.raw)
			if err != nil {
				t.Fatalf("ParseInterval(%q): %v", tt.raw, err)
			}
			if got != tt.want || src != tt.source {
				t.Fatalf("ParseInterval(%q) = %v/%s, want %v/%s", tt.raw, got, src, tt.want, tt.source)
			}
		})
	}
}

func TestParseIntervalInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "-5s", "soon", "*/5 * * * *", "@hourly", "00:75", "@every nope", "@every -5s"} {
		if _, _, err := ParseInterval(raw); err == nil {
			t.Fatalf("ParseInterval(%q): expected error", raw)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty is fine", cfg: Config{}},
		{name: "bad level", cfg: Config{Logging: LoggingConfig{Level: "loud"}}, wantErr: "logging.level"},
		{name: "file without path", cfg: Config{Logging: LoggingConfig{File: LoggingFile{Enabled: true}}}, wantErr: "logging.file.path"},
		{name: "bad driver", cfg: Config{Storage: &StorageConfig{Driver: "redis"}}, wantErr: "storage.driver"},
		{name: "sqlite without path", cfg: Config{Storage: &StorageConfig{Driver: "sqlite"}}, wantErr: "storage.path"},
		{name: "negative shutdown", cfg: Config{ShutdownTimeout: "-1s"}, wantErr: "shutdown_timeout"},
		{name: "unknown kind", cfg: Config{Tasks: []TaskConfig{{Name: "a", Kind: "bell", Interval: "1s"}}}, wantErr: "kind"},
		{name: "negative interval", cfg: Config{Tasks: []TaskConfig{{Name: "a", Kind: KindBroken, Interval: "-1s"}}}, wantErr: "interval"},
		{name: "negative every", cfg: Config{Tasks: []TaskConfig{{Name: "a", Kind: KindBroken, Interval: "@every -5s"}}}, wantErr: "interval"},
		{name: "cron interval", cfg: Config{Tasks: []TaskConfig{{Name: "a", Kind: KindBroken, Interval: "0 * * * *"}}}, wantErr: "calendar"},
		{name: "crier without message", cfg: Config{Tasks: []TaskConfig{{Name: "a", Kind: KindCrier, Interval: "1s"}}}, wantErr: "message"},
		{name: "diag default addr", cfg: Config{Diag: DiagConfig{Enabled: true}}},
		{name: "diag bad addr", cfg: Config{Diag: DiagConfig{Enabled: true, Addr: "localhost"}}, wantErr: "diag.addr"},
		{name: "duplicate names", cfg: Config{Tasks: []TaskConfig{
			{Name: "a", Kind: KindBroken, Interval: "1s"},
			{Name: "a", Kind: KindBroken, Interval: "2s"},
		}}, wantErr: "duplicates"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveTasks(t *testing.T) {
	t.Parallel()
	var empty Config
	if got := len(empty.EffectiveTasks()); got != 4 {
		t.Fatalf("default tasks = %d, want 4", got)
	}
	off := false
	cfg := Config{Tasks: []TaskConfig{
		{Name: "a", Kind: KindBroken, Interval: "1s"},
		{Name: "b", Kind: KindBroken, Interval: "1s", Enabled: &off},
	}}
	got := cfg.EffectiveTasks()
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("EffectiveTasks = %+v", got)
	}
	if err := Validate(&Config{Tasks: DefaultTasks()}); err != nil {
		t.Fatalf("default tasks do not validate: %v", err)
	}
}

const sampleYAML = `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./journal.db
  busy_timeout: 1s
systemd:
  notify: true
shutdown_timeout: 5s
tasks:
  - name: town
    kind: crier
    interval: 10s
    message: "It is %s and all is well"
  - name: broken
    kind: broken
    interval: "@every 1m"
    spins: 10
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "crierd.yaml", sampleYAML)
	m := NewConfigManager(p)
	m.SetValidator(Validator)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit")
	}
	if cfg.Logging.Level != "debug" || cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ShutdownTimeoutOrDefault() != 5*time.Second {
		t.Fatalf("shutdown timeout = %v", cfg.ShutdownTimeoutOrDefault())
	}
	if len(cfg.Tasks) != 2 || cfg.Tasks[1].Spins != 10 {
		t.Fatalf("tasks = %+v", cfg.Tasks)
	}
}

func TestLoadStrict(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := []struct {
		name, file, body string
	}{
		{name: "unknown yaml field", file: "a.yaml", body: "logging:\n  colour: red\n"},
		{name: "unknown json field", file: "b.json", body: `{"plugins": {}}`},
		{name: "trailing json", file: "c.json", body: `{} {}`},
		{name: "invalid task", file: "d.yml", body: "tasks:\n  - {name: x, kind: crier, interval: -1s, message: hi}\n"},
	}
	for _, tt := range tests {
		m := NewConfigManager(writeFile(t, dir, tt.file, tt.body))
		m.SetValidator(Validator)
		if _, err := m.Load(); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{Logging: LoggingConfig{Level: "debug"}}

	s := SummarizeConfigChange(oldCfg, newCfg)
	if len(s.Sections) != 1 || s.Sections[0] != "logging" || s.RestartRequired {
		t.Fatalf("logging-only change: %+v", s)
	}

	newCfg.Tasks = []TaskConfig{{Name: "town-crier", Kind: KindCrier, Interval: "5s", Message: "x %s"}}
	s = SummarizeConfigChange(oldCfg, newCfg)
	if !s.RestartRequired {
		t.Fatal("task change should require a restart")
	}
	// town-crier changed; the other three stock tasks were removed.
	if len(s.Tasks) != 4 || s.Tasks[len(s.Tasks)-1] != "wolf" {
		t.Fatalf("changed tasks = %v", s.Tasks)
	}

	s = SummarizeConfigChange(&Config{}, &Config{Diag: DiagConfig{Enabled: true, Token: "secret"}})
	if len(s.Sections) != 1 || s.Sections[0] != "diag" || !s.RestartRequired {
		t.Fatalf("diag change: %+v", s)
	}

	if s := SummarizeConfigChange(nil, &Config{}); len(s.Sections) != 0 {
		t.Fatalf("nil vs empty: %+v", s)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "crierd.yaml", "logging:\n  level: info\n")
	m := NewConfigManager(p)
	m.SetValidator(Validator)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(4)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "crierd.yaml", "logging:\n  level: warn\n")
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-ch:
			if cfg.Logging.Level == "warn" {
				return
			}
		case <-deadline:
			t.Fatal("no config published after change")
		}
	}
}
