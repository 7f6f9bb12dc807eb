// Package storage keeps an append-only history of task runs.
//
// The history is informational: it is shown by `jautolock status` and never
// read back into scheduling state.
package storage
