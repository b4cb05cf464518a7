package pipeline

import "fmt"

// EventType identifies what caused a pipeline run.
type EventType string

const (
	// EventPush is a commit pushed to a branch.
	EventPush EventType = "push"

	// EventPullRequest is a pull request targeting a branch.
	EventPullRequest EventType = "pull_request"
)

// shortRefLen is the number of commit hash characters used in image tags.
const shortRefLen = 12

// Trigger describes the event that started a pipeline run.
type Trigger struct {
	// Event is the kind of trigger.
	Event EventType

	// Branch is the branch pushed to, or the target branch of a pull request.
	Branch string

	// CommitRef is the full commit hash the run executes against.
	CommitRef string
}

// Validate checks the trigger carries the fields a run requires.
func (t Trigger) Validate() error {
	switch t.Event {
	case EventPush, EventPullRequest:
	default:
		return fmt.Errorf("unknown trigger event: %q", t.Event)
	}
	if t.Branch == "" {
		return fmt.Errorf("trigger branch is required")
	}
	if t.CommitRef == "" {
		return fmt.Errorf("trigger commit ref is required")
	}
	return nil
}

// ShortRef returns the commit-derived immutable tag component.
func (t Trigger) ShortRef() string {
	if len(t.CommitRef) <= shortRefLen {
		return t.CommitRef
	}
	return t.CommitRef[:shortRefLen]
}

// Tags returns the ordered tag list for artifacts published by this run:
// the mutable "latest" tag followed by the immutable commit-derived tag.
func (t Trigger) Tags() []string {
	return []string{"latest", t.ShortRef()}
}
