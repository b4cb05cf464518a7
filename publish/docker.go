package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	"github.com/spindleci/spindle/errors"
)

// dockerAPI is the slice of the Docker client the publisher uses.
// Narrow on purpose so tests can substitute a fake daemon.
type dockerAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
}

// DockerPublisher implements Publisher against a Docker daemon.
type DockerPublisher struct {
	api      dockerAPI
	verifier TagVerifier
	logger   zerolog.Logger
	logOut   io.Writer
}

// DockerOption configures a DockerPublisher.
type DockerOption func(*DockerPublisher)

// WithVerifier enables post-push tag verification.
func WithVerifier(v TagVerifier) DockerOption {
	return func(p *DockerPublisher) { p.verifier = v }
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) DockerOption {
	return func(p *DockerPublisher) { p.logger = logger }
}

// WithBuildOutput streams raw daemon build/push output to w.
func WithBuildOutput(w io.Writer) DockerOption {
	return func(p *DockerPublisher) { p.logOut = w }
}

// NewDockerPublisher connects to the daemon using the standard environment
// configuration (DOCKER_HOST and friends).
func NewDockerPublisher(opts ...DockerOption) (*DockerPublisher, error) {
	dc, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, err, "creating docker client")
	}
	return newDockerPublisher(dc, opts...), nil
}

func newDockerPublisher(api dockerAPI, opts ...DockerOption) *DockerPublisher {
	p := &DockerPublisher{
		api:    api,
		logger: zerolog.Nop(),
		logOut: io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build produces an image from the request's build context. If an image built
// from an identical context already exists locally it is reused instead of
// rebuilt.
func (p *DockerPublisher) Build(ctx context.Context, req BuildRequest) (*ImageHandle, error) {
	if req.Repository == "" {
		return nil, errors.New(errors.CodeInvalidInput, "build repository is required")
	}

	hash, err := ContextHash(req.ContextDir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeBuildFailed, err, "fingerprinting build context")
	}

	if cached, ok, err := p.cachedImage(ctx, hash); err != nil {
		return nil, err
	} else if ok {
		p.logger.Info().
			Str("image", cached).
			Str("context_hash", hash).
			Msg("reusing cached image for unchanged build context")
		return &ImageHandle{ID: cached, Ref: cached, ContextHash: hash, Cached: true}, nil
	}

	buildRef := fmt.Sprintf("%s:build-%s", req.Repository, hash[:12])

	buildCtx, err := archive.TarWithOptions(req.ContextDir, &archive.TarOptions{})
	if err != nil {
		return nil, errors.Wrap(errors.CodeBuildFailed, err, "packaging build context")
	}
	defer buildCtx.Close()

	labels := map[string]string{contextHashLabel: hash}
	for k, v := range req.Labels {
		labels[k] = v
	}

	dockerfile := req.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	resp, err := p.api.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{buildRef},
		Dockerfile: dockerfile,
		Labels:     labels,
		Remove:     true,
	})
	if err != nil {
		return nil, classifyDaemonError(err, errors.CodeBuildFailed, "starting image build")
	}
	defer resp.Body.Close()

	imageID, err := p.drainBuildStream(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.CodeBuildFailed, err, "image build failed")
	}
	if imageID == "" {
		imageID = buildRef
	}

	p.logger.Info().
		Str("image", buildRef).
		Str("context_hash", hash).
		Msg("image built")

	return &ImageHandle{ID: imageID, Ref: buildRef, ContextHash: hash}, nil
}

// Push tags the image with every requested tag and pushes each one. A failure
// on any tag aborts the publish: no Artifact is reported for a partial push.
func (p *DockerPublisher) Push(
	ctx context.Context,
	handle *ImageHandle,
	tags []string,
	creds Credentials,
) (*Artifact, error) {
	if handle == nil {
		return nil, errors.New(errors.CodeInvalidInput, "nil image handle")
	}
	if len(tags) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "no tags to push")
	}

	repository, err := repositoryOf(handle.Ref)
	if err != nil {
		return nil, err
	}

	authHeader, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username: creds.Username,
		Password: creds.Token,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnauthorized, err, "encoding registry credentials")
	}

	var pushed digest.Digest
	for _, tag := range tags {
		ref := fmt.Sprintf("%s:%s", repository, tag)
		if err := p.api.ImageTag(ctx, handle.Ref, ref); err != nil {
			return nil, classifyDaemonError(err, errors.CodePublishFailed,
				fmt.Sprintf("tagging %s", ref))
		}

		out, err := p.api.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: authHeader})
		if err != nil {
			return nil, classifyDaemonError(err, errors.CodePublishFailed,
				fmt.Sprintf("pushing %s", ref))
		}

		dgst, err := p.drainPushStream(out)
		out.Close()
		if err != nil {
			return nil, classifyStreamError(err, fmt.Sprintf("pushing %s", ref))
		}
		if pushed == "" {
			pushed = dgst
		} else if dgst != "" && dgst != pushed {
			return nil, errors.Newf(errors.CodePublishFailed,
				"pushed tags diverged: %s vs %s", pushed, dgst)
		}

		p.logger.Info().Str("ref", ref).Str("digest", dgst.String()).Msg("tag pushed")
	}

	if p.verifier != nil {
		verified, err := p.verifier.VerifyTags(ctx, repository, tags, creds)
		if err != nil {
			return nil, errors.Wrap(errors.CodePublishFailed, err, "verifying pushed tags")
		}
		if pushed != "" && verified != pushed {
			return nil, errors.Newf(errors.CodePublishFailed,
				"registry digest %s does not match pushed digest %s", verified, pushed)
		}
		pushed = verified
	}

	return &Artifact{
		ImageRef: repository,
		Tags:     append([]string(nil), tags...),
		Digest:   pushed,
	}, nil
}

// cachedImage looks for a local image carrying the given context-hash label.
func (p *DockerPublisher) cachedImage(ctx context.Context, hash string) (string, bool, error) {
	args := filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", contextHashLabel, hash)))
	images, err := p.api.ImageList(ctx, image.ListOptions{Filters: args})
	if err != nil {
		return "", false, classifyDaemonError(err, errors.CodeBuildFailed, "listing cached images")
	}
	if len(images) == 0 {
		return "", false, nil
	}
	if len(images[0].RepoTags) > 0 {
		return images[0].RepoTags[0], true, nil
	}
	return images[0].ID, true, nil
}

// drainBuildStream consumes the daemon's build output, forwarding progress
// lines and returning the built image ID reported in the aux payload.
func (p *DockerPublisher) drainBuildStream(r io.Reader) (string, error) {
	var imageID string
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err == io.EOF {
			break
		} else if err != nil {
			return "", fmt.Errorf("decoding build output: %w", err)
		}
		if msg.Error != nil {
			return "", msg.Error
		}
		if msg.Aux != nil {
			var aux struct {
				ID string `json:"ID"`
			}
			if err := json.Unmarshal(*msg.Aux, &aux); err == nil && aux.ID != "" {
				imageID = aux.ID
			}
		}
		if msg.Stream != "" {
			io.WriteString(p.logOut, msg.Stream)
		}
	}
	return imageID, nil
}

// drainPushStream consumes the daemon's push output and returns the manifest
// digest reported in the aux payload.
func (p *DockerPublisher) drainPushStream(r io.Reader) (digest.Digest, error) {
	var dgst digest.Digest
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err == io.EOF {
			break
		} else if err != nil {
			return "", fmt.Errorf("decoding push output: %w", err)
		}
		if msg.Error != nil {
			return "", msg.Error
		}
		if msg.Aux != nil {
			var aux struct {
				Digest string `json:"Digest"`
			}
			if err := json.Unmarshal(*msg.Aux, &aux); err == nil && aux.Digest != "" {
				dgst = digest.Digest(aux.Digest)
			}
		}
		if msg.Status != "" {
			fmt.Fprintln(p.logOut, msg.Status)
		}
	}
	return dgst, nil
}

// repositoryOf strips the tag from a local build reference.
func repositoryOf(ref string) (string, error) {
	for i := len(ref) - 1; i >= 0; i-- {
		switch ref[i] {
		case ':':
			return ref[:i], nil
		case '/':
			// No tag after the last path separator.
			return ref, nil
		}
	}
	if ref == "" {
		return "", errors.New(errors.CodeInvalidInput, "empty image reference")
	}
	return ref, nil
}

// classifyDaemonError maps Docker client errors onto publish error codes.
func classifyDaemonError(err error, fallback errors.ErrorCode, message string) error {
	switch {
	case errdefs.IsUnauthorized(err):
		return errors.Wrap(errors.CodeUnauthorized, err, message)
	case errdefs.IsUnavailable(err) || client.IsErrConnectionFailed(err):
		return errors.Wrap(errors.CodeUnavailable, err, message)
	case errdefs.IsNotFound(err):
		return errors.Wrap(errors.CodeNotFound, err, message)
	default:
		return errors.Wrap(fallback, err, message)
	}
}

// classifyStreamError maps errors reported inside a push stream. The daemon
// surfaces registry auth failures as stream errors, not transport errors.
func classifyStreamError(err error, message string) error {
	var jerr *jsonmessage.JSONError
	if errors.As(err, &jerr) {
		switch {
		case containsAny(jerr.Message, "unauthorized", "authentication required", "denied"):
			return errors.Wrap(errors.CodeUnauthorized, err, message)
		case containsAny(jerr.Message, "connection refused", "no such host", "timeout"):
			return errors.Wrap(errors.CodeUnavailable, err, message)
		}
	}
	return errors.Wrap(errors.CodePublishFailed, err, message)
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
