// Package manager runs a fixed set of tasks, each in its own repeating
// execution loop, until a single shared cancellation is raised.
//
// Lifecycle:
//   - Builder.Build registers and validates the task set once.
//   - Start spawns one loop per task under a fresh supervisor and
//     cancellation context. A second Start while running fails.
//   - Stop cancels and blocks until every loop has exited; no task code runs
//     after it returns.
//
// A loop never ends because of a task failure: errors and panics from
// Execute go to the task's error handler (itself sandboxed) and the loop
// carries on after its interval.
package manager
