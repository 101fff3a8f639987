package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/feedback"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
)

// InMemoryFeedbackStore implements feedback.Repository as an append-only log
type InMemoryFeedbackStore struct {
	mu      sync.RWMutex
	records []*feedback.Feedback
}

func NewInMemoryFeedbackStore() *InMemoryFeedbackStore {
	return &InMemoryFeedbackStore{
		records: make([]*feedback.Feedback, 0),
	}
}

func (s *InMemoryFeedbackStore) Append(ctx context.Context, f *feedback.Feedback) error {
	if f == nil {
		return ierr.NewError("feedback cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, f)
	return nil
}

func (s *InMemoryFeedbackStore) ListByExternalOrderRef(ctx context.Context, externalRef string) ([]*feedback.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*feedback.Feedback, 0)
	for _, r := range s.records {
		if r.ExternalOrderRef == externalRef {
			result = append(result, r)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReportDate.After(result[j].ReportDate)
	})
	return result, nil
}

func (s *InMemoryFeedbackStore) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*feedback.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// latest record per external order reference decides eligibility
	latest := make(map[string]*feedback.Feedback)
	for _, r := range s.records {
		cur, ok := latest[r.ExternalOrderRef]
		if !ok || r.ReportDate.After(cur.ReportDate) {
			latest[r.ExternalOrderRef] = r
		}
	}

	result := make([]*feedback.Feedback, 0)
	for _, r := range latest {
		if r.FeedbackStatus != types.FeedbackStatusUnpaid {
			continue
		}
		if !r.UnpaidAmount.IsPositive() {
			continue
		}
		if !r.ReportDate.Before(cutoff) {
			continue
		}
		result = append(result, r)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReportDate.Before(result[j].ReportDate)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InMemoryFeedbackStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]*feedback.Feedback, 0)
}

var _ feedback.Repository = (*InMemoryFeedbackStore)(nil)
