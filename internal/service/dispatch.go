package service

import (
	"context"
	"time"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/idempotency"
	"github.com/invopeak/fakturaserie/internal/types"
)

// DispatchService runs the periodic dispatch passes. Each pass is expected to
// execute under a held lease so only one instance of the cluster works a batch
// at a time; the conditional transition out of DRAFT is the second line of
// defense against double publishing.
type DispatchService interface {
	// RunBillingDispatch publishes due regular invoices as orders
	RunBillingDispatch(ctx context.Context) (*DispatchResult, error)

	// RunCreditDispatch publishes due credit invoices produced by
	// cancellation, then reverses invoices reported unpaid past the grace
	// period
	RunCreditDispatch(ctx context.Context) (*DispatchResult, error)
}

// DispatchResult summarizes one dispatch pass
type DispatchResult struct {
	Processed  int
	Dispatched int
	Skipped    int
	Failed     int
}

type dispatchService struct {
	ServiceParams
	idGen *idempotency.Generator
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(params ServiceParams) DispatchService {
	return &dispatchService{
		ServiceParams: params,
		idGen:         idempotency.NewGenerator(),
	}
}

func (s *dispatchService) RunBillingDispatch(ctx context.Context) (*DispatchResult, error) {
	now := time.Now().UTC()

	due, err := s.InvoiceRepo.ListDue(ctx, now, s.Config.Scheduler.BatchSize, false)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{}
	for _, inv := range due {
		result.Processed++
		dispatched, err := s.dispatchInvoice(ctx, inv, idempotency.ScopeOrderDispatch, now)
		if err != nil {
			result.Failed++
			s.Logger.Errorw("failed to dispatch invoice",
				"error", err,
				"invoice_reference", inv.Reference,
				"series_reference", inv.SeriesReference,
			)
			continue
		}
		if !dispatched {
			result.Skipped++
			continue
		}
		result.Dispatched++
	}

	if result.Processed > 0 {
		s.Logger.Infow("billing dispatch run completed",
			"processed", result.Processed,
			"dispatched", result.Dispatched,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
	return result, nil
}

func (s *dispatchService) RunCreditDispatch(ctx context.Context) (*DispatchResult, error) {
	now := time.Now().UTC()

	due, err := s.InvoiceRepo.ListDue(ctx, now, s.Config.Scheduler.BatchSize, true)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{}
	for _, inv := range due {
		result.Processed++
		dispatched, err := s.dispatchInvoice(ctx, inv, idempotency.ScopeCreditDispatch, now)
		if err != nil {
			result.Failed++
			s.Logger.Errorw("failed to dispatch credit invoice",
				"error", err,
				"invoice_reference", inv.Reference,
				"series_reference", inv.SeriesReference,
			)
			continue
		}
		if !dispatched {
			result.Skipped++
			continue
		}
		result.Dispatched++
	}

	if err := s.reverseUnpaidInvoices(ctx, now, result); err != nil {
		return result, err
	}

	if result.Processed > 0 {
		s.Logger.Infow("credit dispatch run completed",
			"processed", result.Processed,
			"dispatched", result.Dispatched,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
	return result, nil
}

// dispatchInvoice publishes one invoice and commits the transition out of
// DRAFT. The external reference is derived deterministically from the invoice
// reference so a crash between publish and commit replays with the same
// reference and the external system can deduplicate. The bool reports whether
// this run actually published the invoice.
func (s *dispatchService) dispatchInvoice(ctx context.Context, inv *invoice.Invoice, scope idempotency.Scope, now time.Time) (bool, error) {
	owner, err := s.SeriesRepo.Get(ctx, inv.SeriesReference)
	if err != nil {
		return false, err
	}

	if owner.SeriesStatus == types.SeriesStatusCancelled {
		// cancel the draft so the next due query no longer picks it up
		if err := s.InvoiceRepo.CancelDraft(ctx, inv.Reference); err != nil && !ierr.IsInvalidOperation(err) {
			return false, err
		}
		s.Logger.Warnw("cancelled leftover draft of cancelled series",
			"invoice_reference", inv.Reference,
			"series_reference", owner.Reference,
		)
		return false, nil
	}

	externalRef := s.idGen.GenerateKey(scope, map[string]interface{}{
		"invoice_reference": inv.Reference,
	})

	msg := dto.NewOrderMessage(owner, inv, externalRef, now)
	if err := s.OrderPublisher.PublishOrder(ctx, msg); err != nil {
		return false, err
	}

	err = s.InvoiceRepo.MarkDispatched(ctx, inv.Reference, types.InvoiceStatusOrdered, externalRef, now)
	if err != nil {
		if ierr.IsInvalidOperation(err) {
			// another run won the gate after our due query
			s.Logger.Warnw("invoice already dispatched, skipping commit",
				"invoice_reference", inv.Reference,
			)
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// reverseUnpaidInvoices credits invoices whose latest feedback reports them
// unpaid beyond the configured grace period
func (s *dispatchService) reverseUnpaidInvoices(ctx context.Context, now time.Time, result *DispatchResult) error {
	cutoff := now.Add(-s.Config.Scheduler.UnpaidGracePeriod)

	overdue, err := s.FeedbackRepo.ListUnpaidBefore(ctx, cutoff, s.Config.Scheduler.BatchSize)
	if err != nil {
		return err
	}

	for _, fb := range overdue {
		inv, err := s.InvoiceRepo.GetByExternalOrderRef(ctx, fb.ExternalOrderRef)
		if err != nil {
			if ierr.IsNotFound(err) {
				continue
			}
			result.Failed++
			s.Logger.Errorw("failed to load invoice for reversal",
				"error", err,
				"external_order_ref", fb.ExternalOrderRef,
			)
			continue
		}

		if inv.ExternalCreditRef != nil {
			continue
		}

		result.Processed++
		if err := s.reverseInvoice(ctx, inv, now); err != nil {
			result.Failed++
			s.Logger.Errorw("failed to reverse unpaid invoice",
				"error", err,
				"invoice_reference", inv.Reference,
				"external_order_ref", fb.ExternalOrderRef,
			)
			continue
		}
		result.Dispatched++
	}

	return nil
}

func (s *dispatchService) reverseInvoice(ctx context.Context, inv *invoice.Invoice, now time.Time) error {
	owner, err := s.SeriesRepo.Get(ctx, inv.SeriesReference)
	if err != nil {
		return err
	}

	creditRef := types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_CREDIT_NOTE)

	msg := dto.NewCreditMemoMessage(owner, inv, creditRef, now)
	if err := s.OrderPublisher.PublishOrder(ctx, msg); err != nil {
		return err
	}

	if err := s.InvoiceRepo.RecordCreditRef(ctx, inv.Reference, creditRef); err != nil {
		if ierr.IsInvalidOperation(err) {
			s.Logger.Warnw("invoice already credited, skipping commit",
				"invoice_reference", inv.Reference,
			)
			return nil
		}
		return err
	}

	s.Logger.Infow("reversed unpaid invoice",
		"invoice_reference", inv.Reference,
		"credit_ref", creditRef,
	)
	return nil
}
