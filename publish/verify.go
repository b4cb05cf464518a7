package publish

import (
	"context"
	"net/http"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/spindleci/spindle/errors"
)

// ORASVerifier resolves pushed tags directly against the registry, bypassing
// the local daemon, and checks that every tag points at the same manifest.
type ORASVerifier struct {
	// PlainHTTP talks to the registry over HTTP. Local test registries only.
	PlainHTTP bool
}

var _ TagVerifier = (*ORASVerifier)(nil)

// VerifyTags resolves each tag in the repository and enforces a single shared
// digest. The repository must be fully qualified (registry host included).
func (v *ORASVerifier) VerifyTags(
	ctx context.Context,
	repository string,
	tags []string,
	creds Credentials,
) (digest.Digest, error) {
	if len(tags) == 0 {
		return "", errors.New(errors.CodeInvalidInput, "no tags to verify")
	}

	repo, err := remote.NewRepository(repository)
	if err != nil {
		return "", errors.Wrapf(errors.CodeInvalidInput, err, "invalid repository %s", repository)
	}
	repo.PlainHTTP = v.PlainHTTP

	host := registryHost(repository)
	repo.Client = &auth.Client{
		Client: &http.Client{Transport: retry.NewTransport(http.DefaultTransport)},
		Cache:  auth.NewCache(),
		Credential: auth.StaticCredential(host, auth.Credential{
			Username: creds.Username,
			Password: creds.Token,
		}),
	}

	var shared digest.Digest
	for _, tag := range tags {
		desc, err := repo.Resolve(ctx, tag)
		if err != nil {
			return "", errors.Wrapf(errors.CodePublishFailed, err,
				"resolving %s:%s", repository, tag)
		}
		if !isManifestMediaType(desc.MediaType) {
			return "", errors.Newf(errors.CodePublishFailed,
				"tag %q resolves to unexpected media type %q", tag, desc.MediaType)
		}
		if shared == "" {
			shared = desc.Digest
			continue
		}
		if desc.Digest != shared {
			return "", errors.Newf(errors.CodePublishFailed,
				"tag %q resolves to %s, expected %s", tag, desc.Digest, shared)
		}
	}
	return shared, nil
}

// isManifestMediaType accepts OCI and Docker schema2 manifest types. The
// daemon pushes schema2; multi-arch builds resolve to an index or list.
func isManifestMediaType(mediaType string) bool {
	switch mediaType {
	case ocispec.MediaTypeImageManifest,
		ocispec.MediaTypeImageIndex,
		"application/vnd.docker.distribution.manifest.v2+json",
		"application/vnd.docker.distribution.manifest.list.v2+json":
		return true
	default:
		return false
	}
}

// registryHost extracts the registry host from a fully qualified repository.
func registryHost(repository string) string {
	host, _, found := strings.Cut(repository, "/")
	if !found {
		return repository
	}
	return host
}
