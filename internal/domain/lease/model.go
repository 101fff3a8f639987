package lease

import "time"

// Lease is a time-bounded mutual-exclusion claim keyed by operation name.
// Only the holder may run the named operation until the lease expires;
// expiry is automatic release.
type Lease struct {
	Name      string    `json:"name"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired reports whether the lease has lapsed at the given time
func (l *Lease) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
