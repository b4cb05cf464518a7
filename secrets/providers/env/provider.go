// Package env resolves secrets from process environment variables.
// It is the default external provider for local and CI-hosted runs: the
// hosting environment injects credentials as variables and the runner
// snapshots them once at pipeline start.
package env

import (
	"context"
	"os"
	"time"

	"github.com/spindleci/spindle/secrets"
)

// DefaultPrefix namespaces the environment variables read by the provider.
const DefaultPrefix = "SPINDLE_SECRET_"

// Provider resolves secrets from environment variables named prefix+name.
type Provider struct {
	prefix string
}

// New creates a Provider reading variables with the given prefix.
// An empty prefix falls back to DefaultPrefix.
func New(prefix string) *Provider {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Provider{prefix: prefix}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "env"
}

// Close is a no-op; the provider holds no state.
func (p *Provider) Close() error {
	return nil
}

// Resolve reads the secret from the process environment.
func (p *Provider) Resolve(ctx context.Context, name string) (*secrets.Secret, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	value, ok := os.LookupEnv(p.prefix + name)
	if !ok {
		return nil, secrets.ErrSecretNotFound
	}

	return &secrets.Secret{
		Name:      name,
		Value:     []byte(value),
		CreatedAt: time.Now(),
	}, nil
}

// Exists checks whether the backing environment variable is set.
func (p *Provider) Exists(ctx context.Context, name string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	_, ok := os.LookupEnv(p.prefix + name)
	return ok, nil
}
