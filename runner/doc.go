// Package runner executes a pipeline graph: it starts stages whose
// dependencies have succeeded, injects each stage's granted secrets into its
// step environment, propagates failures forward as skips, and collects
// per-stage logs and results.
//
// Independent stages run concurrently up to a configurable limit. Stage
// status lives in a pipeline.RunState, which is the only shared mutable
// state; secrets are read-only for the duration of a run. Cancelling the
// run context stops launching new stages, lets in-flight stages terminate,
// and marks everything unstarted as skipped.
package runner
