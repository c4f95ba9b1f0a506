package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"crierd/internal/eventbus"
	"crierd/internal/runtime/supervisor"
	"crierd/internal/task"
	logx "crierd/pkg/logx"
)

// FallbackFactory builds the error handler used for a task that declares none.
type FallbackFactory func(name string, log logx.Logger) task.ErrorHandler

type Option func(*Manager)

func WithLogger(log logx.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithBus(bus eventbus.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithFallbackHandler overrides the handler used for tasks without one.
// The default logs and continues (handlers.Log).
func WithFallbackHandler(f FallbackFactory) Option {
	return func(m *Manager) { m.fallback = f }
}

// Manager owns the registered tasks and the state of the current run.
type Manager struct {
	log      logx.Logger
	bus      eventbus.Bus
	fallback FallbackFactory

	// entries is fixed by Build and never mutated afterwards.
	entries []*entry

	mu   sync.Mutex
	run  *run
	runs uint64
}

// run is the state of one Start/Stop cycle. It is never reused.
type run struct {
	id        uint64
	cancel    context.CancelFunc
	sup       *supervisor.Supervisor
	done      chan struct{}
	startedAt time.Time
}

type entry struct {
	index    int
	name     string
	interval time.Duration
	task     task.Task
	handler  task.ErrorHandler

	running       atomic.Bool
	executions    atomic.Uint64
	failures      atomic.Uint64
	handlerPanics atomic.Uint64
	lastRun       atomic.Int64 // unix nano of the last Execute start
	lastErr       atomic.Value // string
}

// TaskInfo is a point-in-time view of one registered task.
type TaskInfo struct {
	Name          string        `json:"name"`
	Interval      time.Duration `json:"interval"`
	Running       bool          `json:"running"`
	Executions    uint64        `json:"executions"`
	Failures      uint64        `json:"failures"`
	HandlerPanics uint64        `json:"handler_panics"`
	LastRun       time.Time     `json:"last_run"`
	LastError     string        `json:"last_error,omitempty"`
}

// Snapshot is intended for diagnostics only.
type Snapshot struct {
	Running    bool                `json:"running"`
	Run        uint64              `json:"run"`
	StartedAt  time.Time           `json:"started_at"`
	Tasks      []TaskInfo          `json:"tasks"`
	Supervisor supervisor.Snapshot `json:"supervisor"`
}

// FailureEvent is the payload of eventbus.TypeTaskFailed.
type FailureEvent struct {
	Task  string `json:"task"`
	Run   uint64 `json:"run"`
	Error string `json:"error"`
	Panic bool   `json:"panic"`
}
