package secrets

import (
	"context"
	"sort"
	"sync"
)

// Snapshot is the immutable set of secrets for one pipeline run.
// It is read-only for its lifetime and cleared when the run ends.
// Stages never receive the Snapshot directly; they receive a scoped Store
// restricted to their declared secret names.
type Snapshot struct {
	mu     sync.RWMutex
	values map[string]*Secret
}

// NewSnapshot builds a Snapshot directly from secrets. Intended for tests and
// callers that assemble credentials without a Manager.
func NewSnapshot(list ...*Secret) *Snapshot {
	values := make(map[string]*Secret, len(list))
	for _, s := range list {
		if s != nil {
			values[s.Name] = s.clone()
		}
	}
	return newSnapshot(values)
}

func newSnapshot(values map[string]*Secret) *Snapshot {
	return &Snapshot{values: values}
}

// Get returns a copy of the named secret, or ErrSecretNotFound.
func (s *Snapshot) Get(ctx context.Context, name string) (*Secret, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.values[name]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return secret.clone(), nil
}

// Names returns the secret names held by the snapshot, sorted.
func (s *Snapshot) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scoped returns a Store restricted to the granted names. Reads outside the
// grant fail with ErrSecretNotFound even when the snapshot holds the secret,
// so one stage can never observe another stage's credentials.
func (s *Snapshot) Scoped(granted ...string) Store {
	grant := make(map[string]struct{}, len(granted))
	for _, name := range granted {
		grant[name] = struct{}{}
	}
	return &scopedStore{snapshot: s, grant: grant}
}

// Redactor returns a Redactor covering every value in the snapshot.
// Stage logs are filtered through it regardless of which scope produced them.
func (s *Snapshot) Redactor() *Redactor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.values))
	for _, secret := range s.values {
		values = append(values, secret.String())
	}
	return NewRedactor(values...)
}

// Close clears every secret value held by the snapshot.
func (s *Snapshot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, secret := range s.values {
		secret.Clear()
		delete(s.values, name)
	}
}

// scopedStore is a least-privilege view over a Snapshot.
type scopedStore struct {
	snapshot *Snapshot
	grant    map[string]struct{}
}

func (s *scopedStore) Get(ctx context.Context, name string) (*Secret, error) {
	if _, ok := s.grant[name]; !ok {
		return nil, ErrSecretNotFound
	}
	return s.snapshot.Get(ctx, name)
}

func (s *scopedStore) Names() []string {
	names := make([]string, 0, len(s.grant))
	for name := range s.grant {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
