package series

import (
	"context"

	"github.com/invopeak/fakturaserie/internal/types"
)

// Filter restricts series listings
type Filter struct {
	CaseReference string
	SeriesStatus  []types.SeriesStatus
	Limit         int
}

// Repository defines the interface for series persistence operations
type Repository interface {
	// Create persists a new series together with its sub-periods
	Create(ctx context.Context, s *Series) error

	// Get retrieves a series by its reference
	Get(ctx context.Context, reference string) (*Series, error)

	// List retrieves series matching the filter
	List(ctx context.Context, filter *Filter) ([]*Series, error)

	// Update persists status, replaced-by and audit fields of an existing series
	Update(ctx context.Context, s *Series) error

	// ExistsActiveForCase reports whether a non-terminal series exists for the
	// given case reference
	ExistsActiveForCase(ctx context.Context, caseReference string) (bool, error)
}
