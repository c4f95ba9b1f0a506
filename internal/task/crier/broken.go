package crier

import (
	"context"
	"fmt"
	"time"

	"crierd/internal/task"
	logx "crierd/pkg/logx"
)

// Broken checks for cancellation spins times and then fails. When it sees
// the cancellation it prints a "safely exited" line and returns nil.
type Broken struct {
	name     string
	interval time.Duration
	spins    int
	settings
}

func NewBroken(name string, interval time.Duration, spins int, opts ...Option) *Broken {
	if spins < 0 {
		spins = 0
	}
	return &Broken{name: name, interval: interval, spins: spins, settings: newSettings(opts)}
}

func (b *Broken) Name() string                    { return b.name }
func (b *Broken) Interval() time.Duration         { return b.interval }
func (b *Broken) ErrorHandler() task.ErrorHandler { return b.handler }

func (b *Broken) Execute(ctx context.Context) error {
	for i := 0; i < b.spins; i++ {
		if ctx.Err() != nil {
			b.log.Debug("broken crier saw cancellation", logx.String("task", b.name), logx.Int("spin", i))
			return b.println("safely exited " + b.stamp())
		}
	}
	return fmt.Errorf("it is %s and I broke", b.stamp())
}

var (
	_ task.Task  = (*Broken)(nil)
	_ task.Named = (*Broken)(nil)
)
