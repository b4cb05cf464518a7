package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph([]Stage{
		{Name: "test"},
		{Name: "build-and-push", DependsOn: []string{"test"}},
	})
	require.NoError(t, err)
	return g
}

func TestRunState_InitialState(t *testing.T) {
	state := NewRunState(chainGraph(t))

	assert.Equal(t, StatusPending, state.Status("test"))
	assert.Equal(t, StatusPending, state.Status("build-and-push"))
	assert.False(t, state.Done())
	assert.Equal(t, []string{"test"}, state.Ready())
}

func TestRunState_Transitions(t *testing.T) {
	state := NewRunState(chainGraph(t))

	require.NoError(t, state.Transition("test", StatusRunning))
	require.NoError(t, state.Transition("test", StatusSucceeded))
	assert.Equal(t, StatusSucceeded, state.Status("test"))

	// Succeeded is terminal.
	err := state.Transition("test", StatusRunning)
	require.Error(t, err)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "test", terr.Stage)
	assert.Equal(t, StatusSucceeded, terr.From)
}

func TestRunState_InvalidTransitions(t *testing.T) {
	state := NewRunState(chainGraph(t))

	// Pending cannot jump straight to Succeeded.
	assert.Error(t, state.Transition("test", StatusSucceeded))
	// Running cannot be skipped.
	require.NoError(t, state.Transition("test", StatusRunning))
	assert.Error(t, state.Transition("test", StatusSkipped))
	// Unknown stage.
	assert.Error(t, state.Transition("nope", StatusRunning))
}

func TestRunState_ReadyGating(t *testing.T) {
	state := NewRunState(chainGraph(t))

	require.NoError(t, state.Transition("test", StatusRunning))
	assert.Empty(t, state.Ready(), "dependent not ready while dependency runs")

	require.NoError(t, state.Transition("test", StatusSucceeded))
	assert.Equal(t, []string{"build-and-push"}, state.Ready())
}

func TestRunState_FailAndPropagate(t *testing.T) {
	g, err := NewGraph([]Stage{
		{Name: "test"},
		{Name: "build", DependsOn: []string{"test"}},
		{Name: "deploy", DependsOn: []string{"build"}},
		{Name: "lint"},
	})
	require.NoError(t, err)
	state := NewRunState(g)

	require.NoError(t, state.Transition("test", StatusRunning))
	skipped, err := state.FailAndPropagate("test")
	require.NoError(t, err)

	assert.Equal(t, []string{"build", "deploy"}, skipped)
	assert.Equal(t, StatusFailed, state.Status("test"))
	assert.Equal(t, StatusSkipped, state.Status("build"))
	assert.Equal(t, StatusSkipped, state.Status("deploy"))
	assert.Equal(t, StatusPending, state.Status("lint"), "independent stage unaffected")
	assert.False(t, state.Succeeded())
}

func TestRunState_FailAndPropagateDiamond(t *testing.T) {
	g, err := NewGraph([]Stage{
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "c", DependsOn: []string{"a"}},
		{Name: "d", DependsOn: []string{"b", "c"}},
	})
	require.NoError(t, err)
	state := NewRunState(g)

	require.NoError(t, state.Transition("a", StatusRunning))
	require.NoError(t, state.Transition("a", StatusSucceeded))
	require.NoError(t, state.Transition("b", StatusRunning))
	require.NoError(t, state.Transition("c", StatusRunning))
	require.NoError(t, state.Transition("c", StatusSucceeded))

	skipped, err := state.FailAndPropagate("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, skipped)
	assert.Equal(t, StatusSucceeded, state.Status("c"), "terminal status untouched")
}

func TestRunState_SkipPending(t *testing.T) {
	g, err := NewGraph([]Stage{
		{Name: "test"},
		{Name: "build", DependsOn: []string{"test"}},
		{Name: "deploy", DependsOn: []string{"build"}},
	})
	require.NoError(t, err)
	state := NewRunState(g)

	require.NoError(t, state.Transition("test", StatusRunning))
	skipped := state.SkipPending()

	assert.Equal(t, []string{"build", "deploy"}, skipped)
	assert.Equal(t, StatusRunning, state.Status("test"), "in-flight stage untouched")
}

func TestRunState_DoneAndSucceeded(t *testing.T) {
	state := NewRunState(chainGraph(t))

	require.NoError(t, state.Transition("test", StatusRunning))
	require.NoError(t, state.Transition("test", StatusSucceeded))
	assert.False(t, state.Done())

	require.NoError(t, state.Transition("build-and-push", StatusRunning))
	require.NoError(t, state.Transition("build-and-push", StatusSucceeded))
	assert.True(t, state.Done())
	assert.True(t, state.Succeeded())
}
