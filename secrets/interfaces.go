package secrets

import "context"

// Resolver defines the core interface for secret resolution.
// Implementations fetch named secrets from a backend.
type Resolver interface {
	// Resolve retrieves a single secret by name.
	// Returns ErrSecretNotFound (possibly wrapped) if the name is unknown.
	Resolve(ctx context.Context, name string) (*Secret, error)

	// Exists checks if a secret exists without retrieving its value.
	Exists(ctx context.Context, name string) (bool, error)
}

// Provider extends Resolver with lifecycle management.
// All secret providers must implement this interface.
type Provider interface {
	Resolver

	// Name returns the provider's identifier (e.g. "env", "memory").
	Name() string

	// Close gracefully shuts down the provider and releases resources.
	Close() error
}

// Store is the read-only view of secrets handed to a running stage.
// A stage only ever sees a Store scoped to the names it declared.
type Store interface {
	// Get returns the secret for name, or ErrSecretNotFound if the name is
	// unknown or not granted to this store.
	Get(ctx context.Context, name string) (*Secret, error)

	// Names returns the secret names visible through this store, sorted.
	Names() []string
}
