package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleci/spindle/errors"
)

func TestNewGraph(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		wantErr string
	}{
		{
			name: "valid chain",
			stages: []Stage{
				{Name: "test"},
				{Name: "build-and-push", DependsOn: []string{"test"}},
			},
		},
		{
			name: "valid diamond",
			stages: []Stage{
				{Name: "a"},
				{Name: "b", DependsOn: []string{"a"}},
				{Name: "c", DependsOn: []string{"a"}},
				{Name: "d", DependsOn: []string{"b", "c"}},
			},
		},
		{
			name:    "empty pipeline",
			stages:  nil,
			wantErr: "no stages",
		},
		{
			name:    "missing stage name",
			stages:  []Stage{{Name: ""}},
			wantErr: "stage name is required",
		},
		{
			name: "duplicate stage name",
			stages: []Stage{
				{Name: "test"},
				{Name: "test"},
			},
			wantErr: "duplicate stage name",
		},
		{
			name: "unknown dependency",
			stages: []Stage{
				{Name: "build", DependsOn: []string{"lint"}},
			},
			wantErr: "unknown stage",
		},
		{
			name: "self loop",
			stages: []Stage{
				{Name: "test", DependsOn: []string{"test"}},
			},
			wantErr: "depends on itself",
		},
		{
			name: "duplicate dependency",
			stages: []Stage{
				{Name: "test"},
				{Name: "build", DependsOn: []string{"test", "test"}},
			},
			wantErr: "duplicate dependency",
		},
		{
			name: "two node cycle",
			stages: []Stage{
				{Name: "a", DependsOn: []string{"b"}},
				{Name: "b", DependsOn: []string{"a"}},
			},
			wantErr: "dependency cycle",
		},
		{
			name: "indirect cycle",
			stages: []Stage{
				{Name: "a", DependsOn: []string{"c"}},
				{Name: "b", DependsOn: []string{"a"}},
				{Name: "c", DependsOn: []string{"b"}},
			},
			wantErr: "dependency cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGraph(tt.stages)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, errors.CodeInvalidConfig, errors.Code(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, g)
		})
	}
}

func TestGraph_TopologicalOrder(t *testing.T) {
	g, err := NewGraph([]Stage{
		{Name: "deploy", DependsOn: []string{"build", "scan"}},
		{Name: "test"},
		{Name: "build", DependsOn: []string{"test"}},
		{Name: "scan", DependsOn: []string{"test"}},
	})
	require.NoError(t, err)

	order := g.TopologicalOrder()
	require.Len(t, order, 4)

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos["test"], pos["build"])
	assert.Less(t, pos["test"], pos["scan"])
	assert.Less(t, pos["build"], pos["deploy"])
	assert.Less(t, pos["scan"], pos["deploy"])

	// Deterministic across calls.
	assert.Equal(t, order, g.TopologicalOrder())
}

func TestGraph_Dependents(t *testing.T) {
	g, err := NewGraph([]Stage{
		{Name: "test"},
		{Name: "build", DependsOn: []string{"test"}},
		{Name: "scan", DependsOn: []string{"test"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"build", "scan"}, g.Dependents("test"))
	assert.Empty(t, g.Dependents("build"))
}

func TestGraph_Stage(t *testing.T) {
	g, err := NewGraph([]Stage{
		{Name: "test", Secrets: []string{"API_KEY"}},
	})
	require.NoError(t, err)

	s, ok := g.Stage("test")
	require.True(t, ok)
	assert.Equal(t, []string{"API_KEY"}, s.Secrets)

	_, ok = g.Stage("missing")
	assert.False(t, ok)
}
