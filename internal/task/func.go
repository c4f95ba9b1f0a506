package task

import (
	"context"
	"time"
)

// Func is a Task built from a plain function.
type Func struct {
	name     string
	interval time.Duration
	handler  ErrorHandler
	fn       func(ctx context.Context) error
}

type FuncOption func(*Func)

// WithErrorHandler sets the task's error handler.
func WithErrorHandler(h ErrorHandler) FuncOption {
	return func(f *Func) { f.handler = h }
}

// New returns a Task that calls fn every interval.
// A nil fn is a no-op iteration.
func New(name string, interval time.Duration, fn func(ctx context.Context) error, opts ...FuncOption) *Func {
	f := &Func{name: name, interval: interval, fn: fn}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Func) Name() string               { return f.name }
func (f *Func) Interval() time.Duration    { return f.interval }
func (f *Func) ErrorHandler() ErrorHandler { return f.handler }

func (f *Func) Execute(ctx context.Context) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx)
}

var _ Task = (*Func)(nil)
var _ Named = (*Func)(nil)
