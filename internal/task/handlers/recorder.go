package handlers

import (
	"sync"

	"crierd/internal/task"
)

// Recorder keeps every error it receives.
type Recorder struct {
	mu   sync.Mutex
	errs []error
	// Max caps the retained errors; older ones are dropped. 0 means unbounded.
	Max int
	// total counts every error, including dropped ones.
	total uint64
}

var _ task.ErrorHandler = (*Recorder)(nil)

func (r *Recorder) HandleError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.errs = append(r.errs, err)
	if r.Max > 0 && len(r.errs) > r.Max {
		r.errs = append(r.errs[:0], r.errs[len(r.errs)-r.Max:]...)
	}
}

// Errors returns a copy of the retained errors, oldest first.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// Count returns the number of errors received.
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
