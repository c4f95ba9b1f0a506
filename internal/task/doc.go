// Package task defines the contract a unit of repeating work must satisfy
// to be run by the task manager.
//
// A Task declares its own repeat interval and error handler and exposes a
// single Execute operation. Execute must watch ctx.Done() when its work is
// long-running; cancellation is cooperative and never preempts a call.
package task
