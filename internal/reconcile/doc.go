// Package reconcile turns the monotonic clock, the idle source and the set of
// running tasks into firing decisions and the next wake-up delay.
//
// Threshold space: a task with threshold T fires once the current idle streak,
// shifted by the engine offset, crosses T. Each cycle evaluates the half-open
// window (lastFired, end] and then advances lastFired to end, so a task fires
// at most once per idle streak unless the baseline is rebased by new user
// activity or a manual fire.
//
// The engine is not safe for concurrent use; the driver loop serializes calls.
package reconcile
