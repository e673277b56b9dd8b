// Package task holds the state of download tasks: the lifecycle state
// machine, per-file progress, the overall progress aggregate, the ETA
// estimate and the registry that maps task IDs to tasks.
//
// A Task is mutated by the download manager and read through immutable
// Snapshots by the CLI, the terminal UI and the web adapter.
package task
