// Package secrets provides secure, provider-agnostic credential handling for
// pipeline runs: secrets are loaded once at run start, scoped to the stages
// that declare them, and cleared when the run ends.
package secrets

import "time"

// Secret represents a resolved secret value with metadata.
// The value must never be logged or serialized; captured stage output is
// passed through a Redactor before it is stored or printed.
type Secret struct {
	// Name identifies the secret (e.g. "REGISTRY_TOKEN").
	Name string
	// Value contains the secret data as bytes. This should never be logged or exposed.
	Value []byte
	// CreatedAt records when this secret was resolved.
	CreatedAt time.Time
}

// String returns the secret value as a string copy.
func (s *Secret) String() string {
	if s == nil || s.Value == nil {
		return ""
	}
	return string(s.Value)
}

// Clear zeroes the secret value in place.
func (s *Secret) Clear() {
	if s == nil {
		return
	}
	for i := range s.Value {
		s.Value[i] = 0
	}
	s.Value = nil
}

// clone returns a deep copy so callers cannot mutate stored state.
func (s *Secret) clone() *Secret {
	if s == nil {
		return nil
	}
	return &Secret{
		Name:      s.Name,
		Value:     append([]byte(nil), s.Value...),
		CreatedAt: s.CreatedAt,
	}
}
