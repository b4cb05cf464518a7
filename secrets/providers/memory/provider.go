// Package memory provides an in-memory secret provider for testing and
// local pipeline runs. It implements thread-safe storage with no persistence.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spindleci/spindle/secrets"
)

// Provider implements an in-memory secret store.
type Provider struct {
	// store holds the secrets keyed by name
	store map[string]*secrets.Secret
	// mu protects concurrent access to the store
	mu sync.RWMutex
}

// New creates a new memory provider instance.
func New() *Provider {
	return &Provider{
		store: make(map[string]*secrets.Secret),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "memory"
}

// Close clears all stored secrets.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, secret := range p.store {
		secret.Clear()
		delete(p.store, name)
	}
	return nil
}

// Resolve retrieves a single secret by name.
func (p *Provider) Resolve(ctx context.Context, name string) (*secrets.Secret, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	secret, exists := p.store[name]
	if !exists {
		return nil, secrets.ErrSecretNotFound
	}

	// Return a copy to prevent external modification.
	return &secrets.Secret{
		Name:      secret.Name,
		Value:     append([]byte(nil), secret.Value...),
		CreatedAt: secret.CreatedAt,
	}, nil
}

// Exists checks if a secret exists without retrieving its value.
func (p *Provider) Exists(ctx context.Context, name string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	_, exists := p.store[name]
	return exists, nil
}

// Store saves a secret value to the provider.
func (p *Provider) Store(ctx context.Context, name string, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.store[name] = &secrets.Secret{
		Name:      name,
		Value:     append([]byte(nil), value...),
		CreatedAt: time.Now(),
	}
	return nil
}

// Delete removes a secret, clearing its value first.
func (p *Provider) Delete(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	secret, exists := p.store[name]
	if !exists {
		return secrets.ErrSecretNotFound
	}

	secret.Clear()
	delete(p.store, name)
	return nil
}
