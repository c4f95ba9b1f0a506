package manager

import (
	"context"
	"fmt"
	"time"

	"crierd/internal/eventbus"
	"crierd/internal/runtime/supervisor"
	"crierd/internal/task"
	logx "crierd/pkg/logx"
)

// Len returns the number of registered tasks.
func (m *Manager) Len() int { return len(m.entries) }

// Running reports whether a run is in progress.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run != nil
}

// Start spawns one execution loop per registered task and returns.
//
// The loops run until Stop is called or ctx is canceled. Calling Start while
// a run is in progress returns task.ErrAlreadyRunning and leaves that run
// untouched. With no tasks registered, Start does nothing.
func (m *Manager) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run != nil {
		return fmt.Errorf("start run %d: %w", m.run.id, task.ErrAlreadyRunning)
	}
	if len(m.entries) == 0 {
		m.log.Debug("start requested with no tasks; nothing to run")
		return nil
	}

	m.runs++
	sup := supervisor.New(ctx, supervisor.WithLogger(m.log.With(logx.String("comp", "task.supervisor"))))
	r := &run{
		id:        m.runs,
		cancel:    sup.Cancel,
		sup:       sup,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	m.run = r

	m.log.Info("task manager starting", logx.Uint64("run", r.id), logx.Int("tasks", len(m.entries)))
	m.bus.Publish(eventbus.Event{Type: eventbus.TypeManagerStarted, Data: r.id})

	for _, e := range m.entries {
		e := e
		sup.Go0("task."+e.name, func(ctx context.Context) { m.loop(ctx, r, e) })
	}
	go m.await(r)
	return nil
}

// await is the run's completion wait: once every loop has exited it marks
// the manager idle, then closes r.done.
func (m *Manager) await(r *run) {
	<-r.sup.Done()

	m.mu.Lock()
	if m.run == r {
		m.run = nil
	}
	m.mu.Unlock()
	// Release the context even when the run ended through the parent ctx.
	r.cancel()

	took := time.Since(r.startedAt)
	m.log.Info("task manager stopped", logx.Uint64("run", r.id), logx.Duration("uptime", took))
	m.bus.Publish(eventbus.Event{Type: eventbus.TypeManagerStopped, Data: r.id})
	close(r.done)
}

// Stop cancels the current run and blocks until every loop has exited.
//
// Stop has no timeout: a task that ignores ctx keeps Stop waiting. Calling
// Stop while idle, or more than once, is safe.
func (m *Manager) Stop() {
	m.mu.Lock()
	r := m.run
	m.mu.Unlock()
	if r == nil {
		return
	}

	m.log.Debug("stop requested", logx.Uint64("run", r.id))
	r.cancel()
	<-r.done
}

// Done returns a channel closed when the current run has fully stopped.
// When idle, the returned channel is already closed.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	r := m.run
	m.mu.Unlock()
	if r == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.done
}

// Wait blocks until the current run has stopped or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns counters for every registered task.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	r := m.run
	m.mu.Unlock()

	snap := Snapshot{Tasks: make([]TaskInfo, 0, len(m.entries))}
	if r != nil {
		snap.Running = true
		snap.Run = r.id
		snap.StartedAt = r.startedAt
		snap.Supervisor = r.sup.Snapshot()
	}
	for _, e := range m.entries {
		snap.Tasks = append(snap.Tasks, e.info())
	}
	return snap
}

func (e *entry) info() TaskInfo {
	it := TaskInfo{
		Name:          e.name,
		Interval:      e.interval,
		Running:       e.running.Load(),
		Executions:    e.executions.Load(),
		Failures:      e.failures.Load(),
		HandlerPanics: e.handlerPanics.Load(),
	}
	if ns := e.lastRun.Load(); ns != 0 {
		it.LastRun = time.Unix(0, ns)
	}
	if s, ok := e.lastErr.Load().(string); ok {
		it.LastError = s
	}
	return it
}
