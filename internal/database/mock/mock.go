// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
)

// MockIdentityStore is an in-memory implementation of database.IdentityWriter
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities []database.EnrolledIdentity

	// Error injection
	ExistsError    error
	AllError       error
	ListError      error
	CountError     error
	InsertError    error
	DimensionError error
}

// NewMockIdentityStore creates a new empty mock store
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{}
}

// AddIdentity stores an identity without the duplicate check
func (m *MockIdentityStore) AddIdentity(identity database.EnrolledIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = append(m.identities, clone(identity))
}

// Exists reports whether the username is enrolled
func (m *MockIdentityStore) Exists(ctx context.Context, username string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexOf(username) >= 0, nil
}

// Insert stores a new identity, rejecting duplicates
func (m *MockIdentityStore) Insert(ctx context.Context, identity database.EnrolledIdentity) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(identity.Username) >= 0 {
		return fmt.Errorf("%w: %s", database.ErrDuplicateLabel, identity.Username)
	}
	if identity.RegisteredAt.IsZero() {
		identity.RegisteredAt = time.Now().UTC()
	}
	m.identities = append(m.identities, clone(identity))
	return nil
}

// All returns copies of every identity in registration order
func (m *MockIdentityStore) All(ctx context.Context) ([]database.EnrolledIdentity, error) {
	if m.AllError != nil {
		return nil, m.AllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.EnrolledIdentity, 0, len(m.identities))
	for _, id := range m.sorted() {
		out = append(out, clone(id))
	}
	return out, nil
}

// List returns summaries in registration order
func (m *MockIdentityStore) List(ctx context.Context) ([]database.IdentitySummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.IdentitySummary, 0, len(m.identities))
	for _, id := range m.sorted() {
		out = append(out, id.Summary())
	}
	return out, nil
}

// Count returns the number of stored identities
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// CountDimensionMismatches counts identities whose embedding length is not dim
func (m *MockIdentityStore) CountDimensionMismatches(ctx context.Context, dim int) (int, error) {
	if m.DimensionError != nil {
		return 0, m.DimensionError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, id := range m.identities {
		if len(id.Embedding) != dim {
			n++
		}
	}
	return n, nil
}

func (m *MockIdentityStore) indexOf(username string) int {
	return slices.IndexFunc(m.identities, func(e database.EnrolledIdentity) bool {
		return e.Username == username
	})
}

// sorted must be called with the lock held.
func (m *MockIdentityStore) sorted() []database.EnrolledIdentity {
	out := slices.Clone(m.identities)
	slices.SortStableFunc(out, func(a, b database.EnrolledIdentity) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		if a.Username < b.Username {
			return -1
		}
		if a.Username > b.Username {
			return 1
		}
		return 0
	})
	return out
}

func clone(e database.EnrolledIdentity) database.EnrolledIdentity {
	e.Embedding = slices.Clone(e.Embedding)
	e.BBox = slices.Clone(e.BBox)
	return e
}
