package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/lease"
)

// InMemoryLeaseStore implements lease.Repository
type InMemoryLeaseStore struct {
	mu     sync.Mutex
	leases map[string]*lease.Lease
}

func NewInMemoryLeaseStore() *InMemoryLeaseStore {
	return &InMemoryLeaseStore{
		leases: make(map[string]*lease.Lease),
	}
}

func (s *InMemoryLeaseStore) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.leases[name]
	if ok && existing.Holder != holder && !existing.IsExpired(now) {
		return false, nil
	}

	s.leases[name] = &lease.Lease{
		Name:      name,
		Holder:    holder,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}
	return true, nil
}

func (s *InMemoryLeaseStore) Release(ctx context.Context, name, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.leases[name]; ok && existing.Holder == holder {
		delete(s.leases, name)
	}
	return nil
}

// Holder returns the current holder of the named lease, if any
func (s *InMemoryLeaseStore) Holder(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.leases[name]
	if !ok {
		return "", false
	}
	return existing.Holder, true
}

func (s *InMemoryLeaseStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leases = make(map[string]*lease.Lease)
}

var _ lease.Repository = (*InMemoryLeaseStore)(nil)
