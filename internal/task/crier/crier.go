// Package crier holds the stock sample tasks: criers that announce the time
// on a fixed interval, and a broken crier that fails on every run.
package crier

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"crierd/internal/task"
	logx "crierd/pkg/logx"
)

// TimeLayout is the default format used for the %s placeholder.
const TimeLayout = "2006-01-02 15:04:05"

// Stock task names, messages and intervals.
const (
	TownName   = "town-crier"
	WolfName   = "wolf"
	LazyName   = "lazy-crier"
	BrokenName = "broken-crier"

	TownMessage = "It is %s and all is well"
	WolfMessage = "It is %s and THE WOLF IS HERE"
	LazyMessage = "It is %s and I am for sure doing my job and checking every 10 seconds"

	TownInterval   = 10 * time.Second
	WolfInterval   = 2 * time.Minute
	LazyInterval   = 30 * time.Second
	BrokenInterval = time.Minute

	// DefaultSpins is how many cancellation checks a broken crier makes before failing.
	DefaultSpins = 1000
)

type settings struct {
	out     io.Writer
	outMu   *sync.Mutex
	handler task.ErrorHandler
	log     logx.Logger
	now     func() time.Time
	layout  string
}

type Option func(*settings)

// WithWriter sets the output. Criers sharing a writer should share the same
// mutex so lines never interleave; nil uses a package-wide one.
func WithWriter(w io.Writer, mu *sync.Mutex) Option {
	return func(s *settings) {
		s.out = w
		if mu != nil {
			s.outMu = mu
		}
	}
}

func WithErrorHandler(h task.ErrorHandler) Option {
	return func(s *settings) { s.handler = h }
}

func WithLogger(log logx.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithTimeLayout(layout string) Option {
	return func(s *settings) { s.layout = layout }
}

var stdoutMu sync.Mutex

func newSettings(opts []Option) settings {
	s := settings{
		out:    logx.Stdout(),
		outMu:  &stdoutMu,
		log:    logx.Nop(),
		now:    time.Now,
		layout: TimeLayout,
	}
	for _, o := range opts {
		o(&s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *settings) stamp() string { return s.now().Format(s.layout) }

func (s *settings) println(line string) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, err := io.WriteString(s.out, line+"\n")
	return err
}

// Crier prints its message, with every %s replaced by the current time.
type Crier struct {
	name     string
	message  string
	interval time.Duration
	settings
}

func New(name, message string, interval time.Duration, opts ...Option) *Crier {
	return &Crier{name: name, message: message, interval: interval, settings: newSettings(opts)}
}

func (c *Crier) Name() string                    { return c.name }
func (c *Crier) Message() string                 { return c.message }
func (c *Crier) Interval() time.Duration         { return c.interval }
func (c *Crier) ErrorHandler() task.ErrorHandler { return c.handler }

func (c *Crier) Execute(ctx context.Context) error {
	return c.println(strings.ReplaceAll(c.message, "%s", c.stamp()))
}

var (
	_ task.Task  = (*Crier)(nil)
	_ task.Named = (*Crier)(nil)
)
