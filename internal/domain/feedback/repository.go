package feedback

import (
	"context"
	"time"
)

// Repository defines the interface for the append-only feedback audit trail
type Repository interface {
	// Append stores a new feedback record; existing records are never changed
	Append(ctx context.Context, f *Feedback) error

	// ListByExternalOrderRef retrieves all feedback for an invoice, newest first
	ListByExternalOrderRef(ctx context.Context, externalRef string) ([]*Feedback, error)

	// ListUnpaidBefore retrieves the latest feedback per external order
	// reference where the report is UNPAID with a positive unpaid amount and
	// older than the cutoff. Used by the crediting run's eligibility query.
	ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Feedback, error)
}
