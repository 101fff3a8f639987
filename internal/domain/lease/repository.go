package lease

import (
	"context"
	"time"
)

// Repository implements cluster-wide mutual exclusion through conditional
// writes against the shared store
type Repository interface {
	// Acquire claims the named lease for holder until now+ttl. The claim
	// succeeds when no lease exists, the lease is expired, or the caller
	// already holds it (renewal). Returns false on contention, never an
	// error for a live competing lease.
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)

	// Release drops the lease if the caller still holds it
	Release(ctx context.Context, name, holder string) error
}
