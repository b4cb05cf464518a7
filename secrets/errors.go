package secrets

import (
	"errors"
	"fmt"
)

// ErrSecretNotFound indicates that the requested secret was not found, either
// because the provider does not hold it or because the requesting stage did
// not declare it. The two cases are deliberately indistinguishable: a stage
// must not be able to probe for secrets it was not granted.
var ErrSecretNotFound = errors.New("secret not found")

// ProviderError wraps provider-specific errors with additional context.
// It preserves the original error while adding provider information for debugging.
type ProviderError struct {
	Provider string // Name of the provider where the error occurred
	Secret   string // The secret name that caused the error (never the value)
	Err      error  // The underlying error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q error for secret %q: %v", e.Provider, e.Secret, e.Err)
}

// Unwrap returns the underlying error for error chain traversal.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapProviderError wraps a provider error with context while preserving the chain.
// Returns nil if err is nil.
func WrapProviderError(provider, secret string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Secret: secret, Err: err}
}

// IsProviderError checks if an error is a ProviderError or contains one in its chain.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
