package testutil

import (
	"context"

	"github.com/invopeak/fakturaserie/internal/domain/series"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
)

// InMemorySeriesStore implements series.Repository
type InMemorySeriesStore struct {
	*InMemoryStore[*series.Series]
}

func NewInMemorySeriesStore() *InMemorySeriesStore {
	return &InMemorySeriesStore{
		InMemoryStore: NewInMemoryStore[*series.Series](),
	}
}

func (s *InMemorySeriesStore) Create(ctx context.Context, item *series.Series) error {
	if item == nil {
		return ierr.NewError("series cannot be nil").Mark(ierr.ErrValidation)
	}

	// mirrors the partial unique index on (case_reference) WHERE ACTIVE
	if item.SeriesStatus == types.SeriesStatusActive {
		existing, err := s.InMemoryStore.List(ctx, nil, nil, nil)
		if err != nil {
			return err
		}
		conflict := lo.SomeBy(existing, func(other *series.Series) bool {
			return other.CaseReference == item.CaseReference &&
				other.SeriesStatus == types.SeriesStatusActive
		})
		if conflict {
			return ierr.NewError("series already exists").
				WithHintf("an active series already exists for case reference %s", item.CaseReference).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	return s.InMemoryStore.Create(ctx, item.Reference, item)
}

func (s *InMemorySeriesStore) Get(ctx context.Context, reference string) (*series.Series, error) {
	item, err := s.InMemoryStore.Get(ctx, reference)
	if err != nil {
		return nil, ierr.NewError("series not found").
			WithHintf("series %s was not found", reference).
			Mark(ierr.ErrNotFound)
	}
	return item, nil
}

func (s *InMemorySeriesStore) List(ctx context.Context, filter *series.Filter) ([]*series.Series, error) {
	items, err := s.InMemoryStore.List(ctx, filter, seriesFilterFn, seriesSortFn)
	if err != nil {
		return nil, err
	}

	if filter != nil && filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *InMemorySeriesStore) Update(ctx context.Context, item *series.Series) error {
	if item == nil {
		return ierr.NewError("series cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, item.Reference, item)
}

func (s *InMemorySeriesStore) ExistsActiveForCase(ctx context.Context, caseReference string) (bool, error) {
	items, err := s.InMemoryStore.List(ctx, nil, nil, nil)
	if err != nil {
		return false, err
	}

	return lo.SomeBy(items, func(item *series.Series) bool {
		return item.CaseReference == caseReference && !item.IsTerminal()
	}), nil
}

func seriesFilterFn(_ context.Context, item *series.Series, filter interface{}) bool {
	f, ok := filter.(*series.Filter)
	if !ok || f == nil {
		return true
	}

	if f.CaseReference != "" && item.CaseReference != f.CaseReference {
		return false
	}

	if len(f.SeriesStatus) > 0 && !lo.Contains(f.SeriesStatus, item.SeriesStatus) {
		return false
	}

	return true
}

func seriesSortFn(i, j *series.Series) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.Reference < j.Reference
	}
	return i.CreatedAt.After(j.CreatedAt)
}

var _ series.Repository = (*InMemorySeriesStore)(nil)
