// Package scheduler runs the recurring monitoring tasks: the batched
// price check, the provider health check, and the quota reset check.
// All three are registered as tagged singleton jobs so a slow run is
// never overlapped by the next tick of the same task.
package scheduler
