package manager

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"crierd/internal/eventbus"
	"crierd/internal/task"
	logx "crierd/pkg/logx"
)

// loop is the per-task execution loop.
//
// Cancellation is checked before every Execute and during the delay; an
// Execute already in flight always runs to completion.
func (m *Manager) loop(ctx context.Context, r *run, e *entry) {
	log := m.log.With(logx.String("task", e.name))
	e.running.Store(true)
	defer e.running.Store(false)

	log.Debug("task loop started", logx.Duration("interval", e.interval))
	for ctx.Err() == nil {
		m.invoke(ctx, r, e, log)
		if !delay(ctx, e.interval) {
			break
		}
	}
	log.Debug("task loop exited", logx.Uint64("executions", e.executions.Load()))
	m.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskExited, Data: e.name})
}

// delay sleeps for d unless ctx ends first. It reports whether the loop
// should continue.
func delay(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Manager) invoke(ctx context.Context, r *run, e *entry, log logx.Logger) {
	started := time.Now()
	e.lastRun.Store(started.UnixNano())
	err := execute(ctx, e.task)
	e.executions.Add(1)

	if err == nil {
		log.Trace("task executed", logx.Duration("took", time.Since(started)))
		return
	}
	// A task that gives up because it was told to stop has not failed.
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		log.Debug("task returned after cancellation", logx.Err(err))
		return
	}

	e.failures.Add(1)
	e.lastErr.Store(err.Error())
	m.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskFailed, Data: FailureEvent{
		Task:  e.name,
		Run:   r.id,
		Error: err.Error(),
		Panic: task.IsPanic(err),
	}})
	m.handle(e, err, log)
}

// execute runs one iteration, turning a panic into *task.PanicError.
func execute(ctx context.Context, t task.Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &task.PanicError{Value: p, Stack: string(debug.Stack())}
		}
	}()
	return t.Execute(ctx)
}

// handle routes err to the task's handler. A panicking handler is discarded.
func (m *Manager) handle(e *entry, err error, log logx.Logger) {
	defer func() {
		if p := recover(); p != nil {
			e.handlerPanics.Add(1)
			log.Debug("error handler panicked; discarded", logx.Any("panic", p), logx.Err(err))
		}
	}()
	e.handler.HandleError(err)
}
