package pipeline

import (
	"sort"
	"strings"

	"github.com/spindleci/spindle/errors"
)

// Graph is an immutable, validated DAG of stages.
//
// It is safe for concurrent read access; runtime status is kept separately
// in a RunState.
type Graph struct {
	stages []Stage // declaration order
	byName map[string]int

	dependents map[string][]string // stage -> stages that depend on it, sorted
}

// NewGraph builds and validates a stage graph.
//
// Validation runs immediately and rejects:
//   - empty pipelines and empty or duplicate stage names
//   - depends_on entries referencing unknown stages
//   - self-loops
//   - any dependency cycle (direct or indirect)
func NewGraph(stages []Stage) (*Graph, error) {
	if len(stages) == 0 {
		return nil, errors.New(errors.CodeInvalidConfig, "pipeline has no stages")
	}

	byName := make(map[string]int, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return nil, errors.New(errors.CodeInvalidConfig, "stage name is required")
		}
		if _, exists := byName[s.Name]; exists {
			return nil, errors.Newf(errors.CodeInvalidConfig, "duplicate stage name: %q", s.Name)
		}
		byName[s.Name] = i
	}

	dependents := make(map[string][]string, len(stages))
	for _, s := range stages {
		seen := make(map[string]struct{}, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, errors.Newf(errors.CodeInvalidConfig,
					"stage %q depends on unknown stage %q", s.Name, dep)
			}
			if dep == s.Name {
				return nil, errors.Newf(errors.CodeInvalidConfig,
					"stage %q depends on itself", s.Name)
			}
			if _, dup := seen[dep]; dup {
				return nil, errors.Newf(errors.CodeInvalidConfig,
					"stage %q declares duplicate dependency %q", s.Name, dep)
			}
			seen[dep] = struct{}{}
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}
	for dep := range dependents {
		sort.Strings(dependents[dep])
	}

	g := &Graph{
		stages:     append([]Stage(nil), stages...),
		byName:     byName,
		dependents: dependents,
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, errors.Newf(errors.CodeInvalidConfig,
			"dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	return g, nil
}

// Stages returns the stages in declaration order.
func (g *Graph) Stages() []Stage {
	out := make([]Stage, len(g.stages))
	copy(out, g.stages)
	return out
}

// Stage returns the stage with the given name.
func (g *Graph) Stage(name string) (Stage, bool) {
	idx, ok := g.byName[name]
	if !ok {
		return Stage{}, false
	}
	return g.stages[idx], true
}

// Names returns all stage names in declaration order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.stages))
	for i, s := range g.stages {
		names[i] = s.Name
	}
	return names
}

// Dependents returns the names of stages that directly depend on the given
// stage, sorted.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}

// TopologicalOrder returns a deterministic topological ordering of stage
// names. Ties are broken by declaration order.
//
// The graph is validated acyclic on construction, so the order always
// contains every stage.
func (g *Graph) TopologicalOrder() []string {
	indeg := make(map[string]int, len(g.stages))
	for _, s := range g.stages {
		indeg[s.Name] = len(s.DependsOn)
	}

	order := make([]string, 0, len(g.stages))
	ready := make([]string, 0, len(g.stages))
	for _, s := range g.stages {
		if indeg[s.Name] == 0 {
			ready = append(ready, s.Name)
		}
	}

	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, dep := range g.dependents[name] {
			indeg[dep]--
			if indeg[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Slice(ready, func(i, j int) bool {
			return g.byName[ready[i]] < g.byName[ready[j]]
		})
	}
	return order
}

// findCycle runs Kahn's algorithm and, when stages remain unordered, walks
// the residual graph to extract one cycle for the error message.
func (g *Graph) findCycle() []string {
	order := g.TopologicalOrder()
	if len(order) == len(g.stages) {
		return nil
	}

	ordered := make(map[string]struct{}, len(order))
	for _, name := range order {
		ordered[name] = struct{}{}
	}

	// Every residual stage sits on or leads into a cycle. Walk dependency
	// edges from the first residual stage until a name repeats.
	var start string
	for _, s := range g.stages {
		if _, ok := ordered[s.Name]; !ok {
			start = s.Name
			break
		}
	}

	visited := make(map[string]int)
	path := []string{}
	cur := start
	for {
		if pos, seen := visited[cur]; seen {
			cycle := append([]string(nil), path[pos:]...)
			return append(cycle, cur)
		}
		visited[cur] = len(path)
		path = append(path, cur)

		stage := g.stages[g.byName[cur]]
		next := ""
		for _, dep := range stage.DependsOn {
			if _, ok := ordered[dep]; !ok {
				next = dep
				break
			}
		}
		cur = next
	}
}
