package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository. Conditional writes are
// guarded by the store mutex the same way the SQL implementation guards them
// with conditional UPDATEs.
type InMemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices map[string]*invoice.Invoice
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		invoices: make(map[string]*invoice.Invoice),
	}
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.Reference]; exists {
		return ierr.NewError("invoice already exists").Mark(ierr.ErrAlreadyExists)
	}

	s.invoices[inv.Reference] = inv
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, reference string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(reference)
}

func (s *InMemoryInvoiceStore) get(reference string) (*invoice.Invoice, error) {
	inv, exists := s.invoices[reference]
	if !exists {
		return nil, ierr.NewError("invoice not found").
			WithHintf("invoice %s was not found", reference).
			Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) GetByExternalOrderRef(ctx context.Context, externalRef string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.ExternalOrderRef != nil && *inv.ExternalOrderRef == externalRef {
			return inv, nil
		}
	}

	return nil, ierr.NewError("invoice not found").
		WithHintf("no invoice with external order reference %s", externalRef).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryInvoiceStore) ListBySeries(ctx context.Context, seriesReference string) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.SeriesReference == seriesReference {
			result = append(result, inv)
		}
	}

	return sortBySendDate(result), nil
}

func (s *InMemoryInvoiceStore) ListDue(ctx context.Context, now time.Time, limit int, credits bool) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.IsCredit() != credits {
			continue
		}
		if inv.IsDue(now) {
			result = append(result, inv)
		}
	}

	result = sortBySendDate(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InMemoryInvoiceStore) MarkDispatched(ctx context.Context, reference string, status types.InvoiceStatus, externalRef string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.get(reference)
	if err != nil {
		return err
	}

	if inv.InvoiceStatus != types.InvoiceStatusDraft {
		return ierr.NewError("invoice is not in draft").
			WithHintf("invoice %s is %s", reference, inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	inv.InvoiceStatus = status
	inv.ExternalOrderRef = lo.ToPtr(externalRef)
	inv.SentAt = lo.ToPtr(sentAt)
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryInvoiceStore) UpdateStatus(ctx context.Context, reference string, from, to types.InvoiceStatus, paidAt *time.Time, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.get(reference)
	if err != nil {
		return err
	}

	if inv.InvoiceStatus != from {
		return ierr.NewError("invoice status changed concurrently").
			WithHintf("invoice %s is %s", reference, inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	inv.InvoiceStatus = to
	if paidAt != nil {
		inv.PaidAt = paidAt
	}
	if errorMessage != nil {
		inv.ErrorMessage = errorMessage
	}
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryInvoiceStore) CancelDraft(ctx context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.get(reference)
	if err != nil {
		return err
	}

	if inv.InvoiceStatus != types.InvoiceStatusDraft {
		return ierr.NewError("invoice is not in draft").
			WithHintf("invoice %s is %s", reference, inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	inv.InvoiceStatus = types.InvoiceStatusCancelled
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryInvoiceStore) RecordCreditRef(ctx context.Context, reference string, creditRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.get(reference)
	if err != nil {
		return err
	}

	if inv.ExternalCreditRef != nil {
		return ierr.NewError("invoice already credited").
			WithHintf("invoice %s already carries credit reference %s", reference, *inv.ExternalCreditRef).
			Mark(ierr.ErrInvalidOperation)
	}

	inv.ExternalCreditRef = lo.ToPtr(creditRef)
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = make(map[string]*invoice.Invoice)
}

func sortBySendDate(invoices []*invoice.Invoice) []*invoice.Invoice {
	sort.Slice(invoices, func(i, j int) bool {
		if invoices[i].ScheduledSendDate.Equal(invoices[j].ScheduledSendDate) {
			return invoices[i].Reference < invoices[j].Reference
		}
		return invoices[i].ScheduledSendDate.Before(invoices[j].ScheduledSendDate)
	})
	return invoices
}

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)
