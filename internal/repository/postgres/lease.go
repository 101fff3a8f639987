package postgres

import (
	"context"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/lease"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/postgres"
)

type leaseRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewLeaseRepository creates a postgres-backed lease repository
func NewLeaseRepository(client postgres.IClient, logger *logger.Logger) lease.Repository {
	return &leaseRepository{client: client, logger: logger}
}

func (r *leaseRepository) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	q := r.client.Querier(ctx)

	now := time.Now().UTC()

	// the upsert only wins when the lease is free, expired, or already ours;
	// a live competing lease leaves zero rows affected
	res, err := q.ExecContext(ctx, `
		INSERT INTO leases (name, holder, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET holder = EXCLUDED.holder,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
		WHERE leases.holder = EXCLUDED.holder
		   OR leases.expires_at <= EXCLUDED.updated_at`,
		name, holder, now.Add(ttl), now)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("failed to acquire lease").
			Mark(ierr.ErrDatabase)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return affected > 0, nil
}

func (r *leaseRepository) Release(ctx context.Context, name, holder string) error {
	q := r.client.Querier(ctx)

	_, err := q.ExecContext(ctx, `
		DELETE FROM leases WHERE name = $1 AND holder = $2`, name, holder)
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to release lease").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
