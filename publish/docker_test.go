package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleci/spindle/errors"
)

// fakeDaemon implements dockerAPI for tests.
type fakeDaemon struct {
	buildStream string
	buildErr    error

	listImages []image.Summary
	listErr    error

	tagged  []string
	tagErr  error
	pushed  []string
	pushOut map[string]string // ref -> stream
	pushErr map[string]error  // ref -> transport error

	buildOptions *types.ImageBuildOptions
}

func (f *fakeDaemon) ImageBuild(
	_ context.Context,
	buildContext io.Reader,
	options types.ImageBuildOptions,
) (types.ImageBuildResponse, error) {
	if f.buildErr != nil {
		return types.ImageBuildResponse{}, f.buildErr
	}
	io.Copy(io.Discard, buildContext)
	f.buildOptions = &options
	return types.ImageBuildResponse{Body: io.NopCloser(bytes.NewBufferString(f.buildStream))}, nil
}

func (f *fakeDaemon) ImageTag(_ context.Context, source, target string) error {
	if f.tagErr != nil {
		return f.tagErr
	}
	f.tagged = append(f.tagged, target)
	return nil
}

func (f *fakeDaemon) ImagePush(_ context.Context, ref string, _ image.PushOptions) (io.ReadCloser, error) {
	if err := f.pushErr[ref]; err != nil {
		return nil, err
	}
	f.pushed = append(f.pushed, ref)
	out := f.pushOut[ref]
	return io.NopCloser(bytes.NewBufferString(out)), nil
}

func (f *fakeDaemon) ImageList(_ context.Context, _ image.ListOptions) ([]image.Summary, error) {
	return f.listImages, f.listErr
}

func writeBuildContext(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"),
		[]byte("FROM scratch\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"),
		[]byte("print('ok')\n"), 0o644))
	return dir
}

func TestDockerPublisher_Build(t *testing.T) {
	daemon := &fakeDaemon{
		buildStream: `{"stream":"Step 1/2 : FROM scratch\n"}` + "\n" +
			`{"aux":{"ID":"sha256:deadbeef"}}` + "\n",
	}
	p := newDockerPublisher(daemon)

	handle, err := p.Build(context.Background(), BuildRequest{
		ContextDir: writeBuildContext(t),
		Repository: "registry.example.com/team/service",
	})
	require.NoError(t, err)

	assert.Equal(t, "sha256:deadbeef", handle.ID)
	assert.False(t, handle.Cached)
	assert.NotEmpty(t, handle.ContextHash)
	assert.Contains(t, handle.Ref, "registry.example.com/team/service:build-")

	require.NotNil(t, daemon.buildOptions)
	assert.Equal(t, "Dockerfile", daemon.buildOptions.Dockerfile)
	assert.Equal(t, handle.ContextHash, daemon.buildOptions.Labels[contextHashLabel])
}

func TestDockerPublisher_BuildStreamError(t *testing.T) {
	daemon := &fakeDaemon{
		buildStream: `{"errorDetail":{"message":"no such file"},"error":"no such file"}` + "\n",
	}
	p := newDockerPublisher(daemon)

	_, err := p.Build(context.Background(), BuildRequest{
		ContextDir: writeBuildContext(t),
		Repository: "team/service",
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeBuildFailed, errors.Code(err))
}

func TestDockerPublisher_BuildCacheHit(t *testing.T) {
	daemon := &fakeDaemon{
		listImages: []image.Summary{{
			ID:       "sha256:cached",
			RepoTags: []string{"team/service:build-abc"},
		}},
	}
	p := newDockerPublisher(daemon)

	handle, err := p.Build(context.Background(), BuildRequest{
		ContextDir: writeBuildContext(t),
		Repository: "team/service",
	})
	require.NoError(t, err)

	assert.True(t, handle.Cached)
	assert.Equal(t, "team/service:build-abc", handle.Ref)
	assert.Nil(t, daemon.buildOptions, "cache hit must not rebuild")
}

func TestDockerPublisher_Push(t *testing.T) {
	dgst := `{"aux":{"Tag":"latest","Digest":"sha256:abc123","Size":1}}` + "\n"
	daemon := &fakeDaemon{
		pushOut: map[string]string{
			"team/service:latest":       dgst,
			"team/service:0123456789ab": `{"aux":{"Digest":"sha256:abc123"}}` + "\n",
		},
	}
	p := newDockerPublisher(daemon)

	handle := &ImageHandle{ID: "sha256:deadbeef", Ref: "team/service:build-abc"}
	artifact, err := p.Push(context.Background(), handle,
		[]string{"latest", "0123456789ab"},
		Credentials{Username: "ci", Token: "tok"})
	require.NoError(t, err)

	assert.Equal(t, "team/service", artifact.ImageRef)
	assert.Equal(t, []string{"latest", "0123456789ab"}, artifact.Tags)
	assert.Equal(t, "sha256:abc123", artifact.Digest.String())
	assert.Equal(t, []string{"team/service:latest", "team/service:0123456789ab"}, daemon.tagged)
	assert.Equal(t, []string{"team/service:latest", "team/service:0123456789ab"}, daemon.pushed)
}

func TestDockerPublisher_PushAllOrNothing(t *testing.T) {
	daemon := &fakeDaemon{
		pushOut: map[string]string{
			"team/service:latest": `{"aux":{"Digest":"sha256:abc123"}}` + "\n",
		},
		pushErr: map[string]error{
			"team/service:0123456789ab": fmt.Errorf("registry unavailable"),
		},
	}
	p := newDockerPublisher(daemon)

	handle := &ImageHandle{Ref: "team/service:build-abc"}
	artifact, err := p.Push(context.Background(), handle,
		[]string{"latest", "0123456789ab"}, Credentials{})

	require.Error(t, err)
	assert.Nil(t, artifact, "partial push must not report an artifact")
}

func TestDockerPublisher_PushAuthFailure(t *testing.T) {
	daemon := &fakeDaemon{
		pushOut: map[string]string{
			"team/service:latest": `{"errorDetail":{"message":"unauthorized: authentication required"},"error":"unauthorized"}` + "\n",
		},
	}
	p := newDockerPublisher(daemon)

	handle := &ImageHandle{Ref: "team/service:build-abc"}
	_, err := p.Push(context.Background(), handle, []string{"latest"}, Credentials{})

	require.Error(t, err)
	assert.Equal(t, errors.CodeUnauthorized, errors.Code(err))
}

func TestDockerPublisher_PushDigestDivergence(t *testing.T) {
	daemon := &fakeDaemon{
		pushOut: map[string]string{
			"team/service:latest": `{"aux":{"Digest":"sha256:abc"}}` + "\n",
			"team/service:sha1":   `{"aux":{"Digest":"sha256:def"}}` + "\n",
		},
	}
	p := newDockerPublisher(daemon)

	handle := &ImageHandle{Ref: "team/service:build-abc"}
	_, err := p.Push(context.Background(), handle, []string{"latest", "sha1"}, Credentials{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "diverged")
}

func TestDockerPublisher_PushValidation(t *testing.T) {
	p := newDockerPublisher(&fakeDaemon{})

	_, err := p.Push(context.Background(), nil, []string{"latest"}, Credentials{})
	assert.Equal(t, errors.CodeInvalidInput, errors.Code(err))

	_, err = p.Push(context.Background(), &ImageHandle{Ref: "a:b"}, nil, Credentials{})
	assert.Equal(t, errors.CodeInvalidInput, errors.Code(err))
}

func TestContextHash_Deterministic(t *testing.T) {
	dir := writeBuildContext(t)

	h1, err := ContextHash(dir)
	require.NoError(t, err)
	h2, err := ContextHash(dir)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"),
		[]byte("print('changed')\n"), 0o644))
	h3, err := ContextHash(dir)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestRepositoryOf(t *testing.T) {
	repo, err := repositoryOf("registry.example.com/team/service:build-abc")
	require.NoError(t, err)
	assert.Equal(t, "registry.example.com/team/service", repo)

	repo, err = repositoryOf("team/service")
	require.NoError(t, err)
	assert.Equal(t, "team/service", repo)
}
