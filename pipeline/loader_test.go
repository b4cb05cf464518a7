package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleci/spindle/errors"
)

const validPipeline = `
name: service-ci
stages:
  - name: test
    steps:
      - name: install deps
        run: pip install -r requirements.txt
      - name: run tests
        run: pytest tests/
  - name: build-and-push
    depends_on: [test]
    secrets: [REGISTRY_USERNAME, REGISTRY_TOKEN]
    publish:
      context: .
      dockerfile: Dockerfile
      repository: example/service
`

func TestParse(t *testing.T) {
	def, graph, err := Parse([]byte(validPipeline))
	require.NoError(t, err)

	assert.Equal(t, "service-ci", def.Name)
	require.Len(t, def.Stages, 2)

	testStage, ok := def.Stage("test")
	require.True(t, ok)
	require.Len(t, testStage.Steps, 2)
	assert.Equal(t, "pytest tests/", testStage.Steps[1].Run)

	push, ok := graph.Stage("build-and-push")
	require.True(t, ok)
	assert.Equal(t, []string{"test"}, push.DependsOn)
	require.NotNil(t, push.Publish)
	assert.Equal(t, "example/service", push.Publish.Repository)

	user, token := push.Publish.CredentialSecrets()
	assert.Equal(t, "REGISTRY_USERNAME", user)
	assert.Equal(t, "REGISTRY_TOKEN", token)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing pipeline name", "stages:\n  - name: test\n"},
		{"missing stages", "name: ci\n"},
		{"empty stages", "name: ci\nstages: []\n"},
		{"step without run", "name: ci\nstages:\n  - name: test\n    steps:\n      - name: broken\n"},
		{"unknown stage field", "name: ci\nstages:\n  - name: test\n    comand: oops\n"},
		{"invalid stage name", "name: ci\nstages:\n  - name: 'has spaces'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidConfig, errors.Code(err))
		})
	}
}

func TestParse_CycleRejectedBeforeExecution(t *testing.T) {
	raw := `
name: ci
stages:
  - name: a
    depends_on: [b]
  - name: b
    depends_on: [a]
`
	_, _, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestParse_NotYAML(t *testing.T) {
	_, _, err := Parse([]byte("\tnot: [valid"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.Code(err))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte(validPipeline), 0o644))

	def, graph, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "service-ci", def.Name)
	assert.Equal(t, []string{"test", "build-and-push"}, graph.TopologicalOrder())
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.Code(err))
}

func TestDefaultCredentialSecrets(t *testing.T) {
	p := &PublishSpec{UsernameSecret: "DOCKER_USER", TokenSecret: "DOCKER_PAT"}
	user, token := p.CredentialSecrets()
	assert.Equal(t, "DOCKER_USER", user)
	assert.Equal(t, "DOCKER_PAT", token)

	assert.Equal(t, ".", (&PublishSpec{}).ContextDir())
	assert.Equal(t, "Dockerfile", (&PublishSpec{}).DockerfilePath())
}
