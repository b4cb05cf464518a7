// Package publish builds container images and pushes tagged artifacts to a
// registry. The Docker daemon does the actual building; this package wraps it
// behind a Publisher so the pipeline runner stays ignorant of the transport.
//
// Pushes are all-or-nothing across the tag list: if any tag fails to push, no
// Artifact is reported. An optional ORAS-backed verifier resolves each pushed
// tag after the fact and checks that all tags converged on a single digest.
package publish
