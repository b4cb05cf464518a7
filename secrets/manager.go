package secrets

import (
	"context"
	"fmt"
	"sync"
)

// Config holds the configuration for the Manager.
type Config struct {
	// DefaultProvider is the name of the provider used when none is named explicitly.
	DefaultProvider string
}

// Manager orchestrates secret resolution across registered providers.
// It is the component that loads secrets at pipeline start; during a run the
// resulting Snapshot is the only thing stages interact with.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string

	mu sync.RWMutex
}

// NewManager creates a new Manager with the provided configuration.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = &Config{}
	}
	return &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: config.DefaultProvider,
	}
}

// RegisterProvider adds a provider to the manager's registry.
// Returns an error if a provider with the same name already exists.
func (m *Manager) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.providers[name]; exists {
		return fmt.Errorf("provider with name %q already registered", name)
	}

	m.providers[name] = provider
	return nil
}

// Resolve resolves a secret using the default provider.
func (m *Manager) Resolve(ctx context.Context, name string) (*Secret, error) {
	if m.defaultProvider == "" {
		return nil, fmt.Errorf("no default provider configured")
	}
	return m.ResolveFrom(ctx, m.defaultProvider, name)
}

// ResolveFrom resolves a secret using a specific provider.
func (m *Manager) ResolveFrom(ctx context.Context, providerName, name string) (*Secret, error) {
	provider, err := m.provider(providerName)
	if err != nil {
		return nil, err
	}

	secret, err := provider.Resolve(ctx, name)
	if err != nil {
		return nil, WrapProviderError(providerName, name, err)
	}
	return secret, nil
}

// Exists checks if a secret exists using the default provider.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if m.defaultProvider == "" {
		return false, fmt.Errorf("no default provider configured")
	}

	provider, err := m.provider(m.defaultProvider)
	if err != nil {
		return false, err
	}

	exists, err := provider.Exists(ctx, name)
	if err != nil {
		return false, WrapProviderError(m.defaultProvider, name, err)
	}
	return exists, nil
}

// Snapshot resolves every named secret through the default provider and
// returns an immutable Snapshot for the duration of one pipeline run.
// Resolution is all-or-nothing: a single missing secret fails the whole call,
// so misconfiguration surfaces before any stage executes.
func (m *Manager) Snapshot(ctx context.Context, names []string) (*Snapshot, error) {
	values := make(map[string]*Secret, len(names))
	for _, name := range names {
		secret, err := m.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		values[name] = secret
	}
	return newSnapshot(values), nil
}

// Close gracefully shuts down all registered providers.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, provider := range m.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	m.providers = make(map[string]Provider)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("errors during shutdown: %v", errs)
}

func (m *Manager) provider(name string) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}

	m.mu.RLock()
	provider, exists := m.providers[name]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return provider, nil
}
