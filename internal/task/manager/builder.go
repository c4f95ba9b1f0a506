package manager

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"crierd/internal/eventbus"
	"crierd/internal/task"
	"crierd/internal/task/handlers"
	logx "crierd/pkg/logx"
)

// Builder collects the task set. Registration happens once; the Manager it
// builds has an immutable task list.
type Builder struct {
	opts  []Option
	tasks []task.Task
}

func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: opts}
}

// Add appends tasks in registration order.
func (b *Builder) Add(ts ...task.Task) *Builder {
	b.tasks = append(b.tasks, ts...)
	return b
}

// Build validates every task and returns the Manager.
// All problems are reported together; nothing is registered on error.
func (b *Builder) Build() (*Manager, error) {
	m := &Manager{}
	for _, o := range b.opts {
		o(m)
	}
	if m.log.IsZero() {
		m.log = logx.Nop()
	}
	if m.bus == nil {
		m.bus = eventbus.Nop()
	}
	if m.fallback == nil {
		m.fallback = func(name string, log logx.Logger) task.ErrorHandler {
			return handlers.Log(log, name)
		}
	}

	var errs []error
	seen := make(map[string]int, len(b.tasks))
	entries := make([]*entry, 0, len(b.tasks))
	for i, t := range b.tasks {
		if isNil(t) {
			errs = append(errs, fmt.Errorf("task #%d: %w", i, task.ErrNilTask))
			continue
		}
		name := strings.TrimSpace(task.NameOf(t))
		if name == "" {
			name = "task-" + strconv.Itoa(i)
		}
		if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("task #%d %q (first at #%d): %w", i, name, prev, task.ErrDuplicateName))
			continue
		}
		seen[name] = i

		interval := t.Interval()
		if err := task.ValidateInterval(interval); err != nil {
			errs = append(errs, fmt.Errorf("task #%d %q: %w", i, name, err))
			continue
		}

		h := t.ErrorHandler()
		if isNil(h) {
			h = m.fallback(name, m.log.With(logx.String("task", name)))
		}
		entries = append(entries, &entry{
			index:    i,
			name:     name,
			interval: interval,
			task:     t,
			handler:  h,
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	m.entries = entries
	return m, nil
}

// isNil also catches typed nil pointers stored in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
