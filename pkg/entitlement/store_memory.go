package entitlement

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and local
// development. Semantics mirror PGStore: writes are atomic assignments and
// unknown keys are no-ops where the interface says so.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*User // keyed by email
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) UpsertEntitled(_ context.Context, params UpsertParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if u, ok := s.users[params.Email]; ok {
		u.ProviderCustomerID = params.ProviderCustomerID
		u.Entitled = params.Entitled
		u.UpdatedAt = now
		return nil
	}
	s.users[params.Email] = &User{
		ID:                 params.ID,
		Email:              params.Email,
		Name:               params.Name,
		ProviderCustomerID: params.ProviderCustomerID,
		Entitled:           params.Entitled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return nil
}

func (s *MemoryStore) SetEntitledByCustomerID(_ context.Context, customerID string, entitled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ProviderCustomerID == customerID {
			u.Entitled = entitled
			u.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, id, email, name, currentRole, desiredRole string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	// Keyed by email so a webhook-created row is adopted, keeping its
	// entitlement while taking on the caller's identity id.
	if u, ok := s.users[email]; ok {
		u.ID = id
		u.Name = name
		u.CurrentRole = currentRole
		u.DesiredRole = desiredRole
		u.UpdatedAt = now
		return nil
	}
	s.users[email] = &User{
		ID:          id,
		Email:       email,
		Name:        name,
		CurrentRole: currentRole,
		DesiredRole: desiredRole,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return nil
}

// Count returns the number of stored users. Test helper.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
