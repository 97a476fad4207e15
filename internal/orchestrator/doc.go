// Package orchestrator drives an external searchable list to select the
// entry for each extracted student identifier.
//
// The list is a single shared UI resource: one search field, one rendered
// result set, no completion events. MatchBatch therefore processes
// identifiers strictly one after another and synchronises with fixed settle
// delays:
//
//	report progress "(i/n): id"
//	locate search field            missing -> Failed
//	clear field, wait ClearSettle
//	type id, wait SearchSettle
//	first entry containing id      none -> Failed
//	  already selected             -> Matched, no select call
//	  otherwise select, wait SelectSettle -> Matched
//	wait Throttle before the next identifier
//
// Every identifier ends Matched or Failed exactly once. Errors, panics and
// per-item timeouts inside the Environment become Failed outcomes; they never
// abort the batch. Callers retry with Retry, which re-runs only the failed
// subset.
package orchestrator
