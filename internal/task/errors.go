package task

import (
	"errors"
	"fmt"
)

var (
	ErrNilTask         = errors.New("task is nil")
	ErrInvalidInterval = errors.New("invalid task interval")
	ErrDuplicateName   = errors.New("duplicate task name")
	ErrAlreadyRunning  = errors.New("task manager already running")
)

// PanicError is what a panic inside Execute becomes before it reaches the
// task's error handler.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
