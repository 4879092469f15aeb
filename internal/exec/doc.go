// Package exec drives traversers through compiled pipelines.
//
// The runner is pull-based and single-goroutine: it seeds start
// traversers into the head step and drains survivors from the tail.
// Each run carries a UUID token through its structured logs, executes
// on a per-run clone of the pipeline (steps hold per-execution state),
// and aborts with a typed error when a traverser budget is exceeded.
package exec
