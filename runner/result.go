package runner

import (
	"time"

	"github.com/spindleci/spindle/pipeline"
	"github.com/spindleci/spindle/publish"
)

// StageResult is the outcome of a single stage.
type StageResult struct {
	// Name of the stage.
	Name string

	// Status is the stage's terminal status.
	Status pipeline.Status

	// Log holds the stage's ordered, secret-redacted output lines.
	Log []string

	// Err describes why the stage failed, if it did.
	Err error

	// Duration covers secret resolution, steps, and publish.
	Duration time.Duration

	// Artifact is set when the stage published an image.
	Artifact *publish.Artifact
}

// Result is the outcome of a whole pipeline run.
type Result struct {
	// Pipeline is the pipeline name.
	Pipeline string

	// Trigger that started the run.
	Trigger pipeline.Trigger

	// Succeeded is true iff every stage succeeded.
	Succeeded bool

	// Stages maps stage name to its result. Every stage in the graph has
	// an entry, including skipped ones.
	Stages map[string]*StageResult

	// Artifacts published by the run, in completion order.
	Artifacts []publish.Artifact

	// Duration of the whole run.
	Duration time.Duration
}

// Stage returns the result for a stage name.
func (r *Result) Stage(name string) (*StageResult, bool) {
	sr, ok := r.Stages[name]
	return sr, ok
}
