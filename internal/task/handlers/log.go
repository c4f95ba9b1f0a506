package handlers

import (
	"sync/atomic"

	"golang.org/x/time/rate"

	"crierd/internal/task"
	logx "crierd/pkg/logx"
)

// Log burst and rate; a task failing in a tight loop logs at most this much.
const (
	logBurst = 3
	logRate  = rate.Limit(1)
)

type logHandler struct {
	log        logx.Logger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// Log returns a handler that logs every error at WARN, throttled per task.
// Errors dropped by the throttle are counted and reported with the next
// logged one. Panics are logged at ERROR with their stack.
func Log(log logx.Logger, name string) task.ErrorHandler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if name != "" {
		log = log.With(logx.String("task", name))
	}
	return &logHandler{log: log, limiter: rate.NewLimiter(logRate, logBurst)}
}

func (h *logHandler) HandleError(err error) {
	if err == nil {
		return
	}
	if !h.limiter.Allow() {
		h.suppressed.Add(1)
		return
	}
	fields := []logx.Field{logx.Err(err)}
	if n := h.suppressed.Swap(0); n > 0 {
		fields = append(fields, logx.Uint64("suppressed", n))
	}
	if pe, ok := asPanic(err); ok {
		fields = append(fields, logx.Stack(pe.Stack))
		h.log.Error("task panicked", fields...)
		return
	}
	h.log.Warn("task failed", fields...)
}
