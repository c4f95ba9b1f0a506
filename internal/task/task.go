package task

import (
	"context"
	"fmt"
	"math"
	"time"
)

// MaxInterval is the largest accepted interval.
const MaxInterval = time.Duration(math.MaxInt64)

// Task is a unit of repeating work.
type Task interface {
	// Interval is the pause between the end of one Execute and the start of
	// the next. Zero means back-to-back.
	Interval() time.Duration

	// ErrorHandler receives errors from Execute. It may be nil.
	ErrorHandler() ErrorHandler

	// Execute performs one iteration of work.
	Execute(ctx context.Context) error
}

// Named is implemented by tasks that carry a stable name for logs and snapshots.
type Named interface {
	Name() string
}

// ErrorHandler is notified of a task's execution errors.
// Implementations must not panic; a panic is recovered and discarded by the caller.
type ErrorHandler interface {
	HandleError(err error)
}

// ErrorHandlerFunc adapts a plain function to ErrorHandler.
type ErrorHandlerFunc func(err error)

func (f ErrorHandlerFunc) HandleError(err error) {
	if f != nil {
		f(err)
	}
}

// ValidateInterval rejects negative intervals. A time.Duration cannot exceed
// MaxInterval, so every non-negative value is finite and accepted.
func ValidateInterval(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %s is negative", ErrInvalidInterval, d)
	}
	return nil
}

// NameOf returns t's name, or "" if it has none.
func NameOf(t Task) string {
	if n, ok := t.(Named); ok {
		return n.Name()
	}
	return ""
}
