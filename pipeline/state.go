package pipeline

import (
	"sort"
	"sync"
)

// RunState tracks per-stage status for one execution of a Graph.
//
// All methods are safe for concurrent use: the runner evaluates readiness
// and records results from multiple goroutines.
type RunState struct {
	graph *Graph

	mu     sync.RWMutex
	status map[string]Status
}

// NewRunState creates run state with every stage Pending.
func NewRunState(g *Graph) *RunState {
	status := make(map[string]Status, len(g.stages))
	for _, s := range g.stages {
		status[s.Name] = StatusPending
	}
	return &RunState{graph: g, status: status}
}

// Status returns the current status of a stage.
func (r *RunState) Status(name string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status[name]
}

// Statuses returns a snapshot of every stage's status.
func (r *RunState) Statuses() map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Status, len(r.status))
	for name, st := range r.status {
		out[name] = st
	}
	return out
}

// Transition moves a stage to a new status, enforcing the state machine.
// Terminal statuses are never overwritten.
func (r *RunState) Transition(name string, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(name, to)
}

func (r *RunState) transitionLocked(name string, to Status) error {
	from, ok := r.status[name]
	if !ok {
		return &TransitionError{Stage: name, To: to}
	}
	if !allowedTransition(from, to) {
		return &TransitionError{Stage: name, From: from, To: to}
	}
	r.status[name] = to
	return nil
}

// Ready returns the stages eligible to start: Pending, with every dependency
// Succeeded. The result is sorted by declaration order so scheduling is
// deterministic.
func (r *RunState) Ready() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ready := make([]string, 0)
	for _, s := range r.graph.stages {
		if r.status[s.Name] != StatusPending {
			continue
		}
		ok := true
		for _, dep := range s.DependsOn {
			if r.status[dep] != StatusSucceeded {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, s.Name)
		}
	}
	return ready
}

// FailAndPropagate marks a running stage Failed and transitively marks every
// pending dependent Skipped. Failure flows forward through dependency edges
// only; stages already terminal are left unchanged.
//
// It returns the names of stages newly marked Skipped, sorted.
func (r *RunState) FailAndPropagate(name string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.transitionLocked(name, StatusFailed); err != nil {
		return nil, err
	}
	return r.skipDependentsLocked(name), nil
}

// SkipPending marks every stage still Pending as Skipped. Used on
// cancellation: in-flight stages finish on their own terms, unstarted
// stages never start.
//
// It returns the names of stages newly marked Skipped, sorted.
func (r *RunState) SkipPending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	skipped := make([]string, 0)
	for _, s := range r.graph.stages {
		if r.status[s.Name] == StatusPending {
			r.status[s.Name] = StatusSkipped
			skipped = append(skipped, s.Name)
		}
	}
	sort.Strings(skipped)
	return skipped
}

func (r *RunState) skipDependentsLocked(name string) []string {
	skipped := make([]string, 0)
	queue := append([]string(nil), r.graph.dependents[name]...)
	seen := map[string]struct{}{name: {}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, done := seen[cur]; done {
			continue
		}
		seen[cur] = struct{}{}

		if r.status[cur] == StatusPending {
			r.status[cur] = StatusSkipped
			skipped = append(skipped, cur)
		}
		queue = append(queue, r.graph.dependents[cur]...)
	}

	sort.Strings(skipped)
	return skipped
}

// Done reports whether every stage has reached a terminal status.
func (r *RunState) Done() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, st := range r.status {
		if !st.IsTerminal() {
			return false
		}
	}
	return true
}

// Succeeded reports whether every stage finished Succeeded.
func (r *RunState) Succeeded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, st := range r.status {
		if st != StatusSucceeded {
			return false
		}
	}
	return true
}
