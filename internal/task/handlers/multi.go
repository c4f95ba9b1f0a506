package handlers

import (
	"crierd/internal/task"
)

type multi []task.ErrorHandler

// Multi fans an error out to every non-nil handler in order. A panic in one
// handler does not prevent the others from running; the first panic is
// re-raised once all have been called.
func Multi(hs ...task.ErrorHandler) task.ErrorHandler {
	out := make(multi, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (m multi) HandleError(err error) {
	var first any
	for _, h := range m {
		if p := call(h, err); p != nil && first == nil {
			first = p
		}
	}
	if first != nil {
		panic(first)
	}
}

func call(h task.ErrorHandler, err error) (p any) {
	defer func() { p = recover() }()
	h.HandleError(err)
	return nil
}
