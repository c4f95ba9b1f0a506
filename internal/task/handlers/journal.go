package handlers

import (
	"context"
	"errors"
	"time"

	"crierd/internal/storage"
	"crierd/internal/task"
	logx "crierd/pkg/logx"
)

// journalTimeout bounds a single append. It runs on the task's loop.
const journalTimeout = 2 * time.Second

type journal struct {
	store storage.Store
	name  string
	log   logx.Logger
}

// Journal returns a handler that appends each error to store.
// A nil store yields a handler that does nothing.
func Journal(store storage.Store, name string, log logx.Logger) task.ErrorHandler {
	if store == nil {
		return task.ErrorHandlerFunc(nil)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &journal{store: store, name: name, log: log.With(logx.String("task", name))}
}

func (j *journal) HandleError(err error) {
	if err == nil {
		return
	}
	f := storage.Failure{At: time.Now(), Task: j.name, Error: err.Error()}
	if pe, ok := asPanic(err); ok {
		f.Panic = true
		f.Stack = pe.Stack
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if aerr := j.store.AppendFailure(ctx, f); aerr != nil && !errors.Is(aerr, storage.ErrClosed) {
		j.log.Warn("failure journal append failed", logx.Err(aerr))
	}
}

func asPanic(err error) (*task.PanicError, bool) {
	var pe *task.PanicError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
