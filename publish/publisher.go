package publish

import (
	"context"

	"github.com/opencontainers/go-digest"
)

// Credentials authenticate a push to a registry.
type Credentials struct {
	Username string
	Token    string
}

// BuildRequest describes an image build.
type BuildRequest struct {
	// ContextDir is the build context directory.
	ContextDir string

	// Dockerfile is the build file path, relative to ContextDir.
	Dockerfile string

	// Repository is the image repository the build is destined for,
	// without a tag.
	Repository string

	// Labels are attached to the built image.
	Labels map[string]string
}

// ImageHandle identifies a locally built image ready to be tagged and pushed.
type ImageHandle struct {
	// ID is the daemon-local image identifier.
	ID string

	// Ref is the local reference the build was tagged with.
	Ref string

	// ContextHash fingerprints the build context the image was produced from.
	ContextHash string

	// Cached reports whether the image was reused from a previous build of
	// an identical context rather than rebuilt.
	Cached bool
}

// Artifact is the registry-visible result of a successful publish.
type Artifact struct {
	// ImageRef is the repository the tags were pushed to.
	ImageRef string

	// Tags in push order.
	Tags []string

	// Digest is the manifest digest shared by every pushed tag. Empty when
	// the registry response did not report one.
	Digest digest.Digest
}

// Publisher builds images and pushes tagged artifacts.
type Publisher interface {
	// Build produces an image from the request's context directory.
	Build(ctx context.Context, req BuildRequest) (*ImageHandle, error)

	// Push tags the image and pushes every tag. It succeeds only if all
	// tags are pushed; a partial push reports an error and no Artifact.
	Push(ctx context.Context, handle *ImageHandle, tags []string, creds Credentials) (*Artifact, error)
}

// TagVerifier confirms pushed tags are resolvable in the registry and agree
// on a single digest.
type TagVerifier interface {
	VerifyTags(ctx context.Context, repository string, tags []string, creds Credentials) (digest.Digest, error)
}
