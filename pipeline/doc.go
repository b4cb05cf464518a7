// Package pipeline defines the static model of a pipeline run: stages, their
// dependency graph, trigger metadata, and the per-stage status state machine.
//
// A pipeline definition is loaded from YAML, validated against a JSON schema,
// and compiled into an immutable Graph. The Graph rejects duplicate stage
// names, references to unknown stages, self-loops, and dependency cycles
// before any stage executes. Runtime status lives in a separate RunState so
// the same Graph can back multiple runs.
package pipeline
