package service

import (
	"context"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/domain/feedback"
	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
)

// FeedbackService processes status reports from the external billing system
// and exposes the per-invoice audit trail
type FeedbackService interface {
	// ProcessFeedback appends the report to the audit trail and applies the
	// resulting invoice status transition
	ProcessFeedback(ctx context.Context, msg *dto.FeedbackMessage) error

	// ListFeedback returns all feedback received for an invoice, newest first
	ListFeedback(ctx context.Context, invoiceReference string) (*dto.ListFeedbackResponse, error)
}

type feedbackService struct {
	ServiceParams
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(params ServiceParams) FeedbackService {
	return &feedbackService{ServiceParams: params}
}

func (s *feedbackService) ProcessFeedback(ctx context.Context, msg *dto.FeedbackMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	record := msg.ToFeedback()

	inv, err := s.InvoiceRepo.GetByExternalOrderRef(ctx, msg.ExternalOrderRef)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}

	// the audit record is appended even when no invoice matches, so reports
	// arriving out of order are never lost
	appendErr := s.DB.WithTx(ctx, func(tx context.Context) error {
		if err := s.FeedbackRepo.Append(tx, record); err != nil {
			return err
		}
		if inv == nil {
			return nil
		}
		return s.applyTransition(tx, inv, msg)
	})
	if appendErr != nil {
		return appendErr
	}

	if inv == nil {
		s.Logger.Warnw("received feedback for unknown external order reference",
			"external_order_ref", msg.ExternalOrderRef,
			"status", msg.FeedbackStatus,
		)
		return nil
	}

	s.Logger.Infow("processed feedback",
		"invoice_reference", inv.Reference,
		"external_order_ref", msg.ExternalOrderRef,
		"status", msg.FeedbackStatus,
	)
	return nil
}

// applyTransition maps the reported status onto the invoice state machine.
// Reports that do not advance the state are recorded but change nothing.
func (s *feedbackService) applyTransition(ctx context.Context, inv *invoice.Invoice, msg *dto.FeedbackMessage) error {
	var target types.InvoiceStatus
	switch msg.FeedbackStatus {
	case types.FeedbackStatusPaid:
		target = types.InvoiceStatusPaid
	case types.FeedbackStatusError:
		target = types.InvoiceStatusFailed
	default:
		// RECEIVED and UNPAID both confirm the external system has the order
		target = types.InvoiceStatusSent
	}

	if !inv.InvoiceStatus.CanTransition(target) {
		return nil
	}

	var err error
	switch target {
	case types.InvoiceStatusPaid:
		err = s.InvoiceRepo.UpdateStatus(ctx, inv.Reference, inv.InvoiceStatus, target, lo.ToPtr(msg.ReportDate), nil)
	case types.InvoiceStatusFailed:
		err = s.InvoiceRepo.UpdateStatus(ctx, inv.Reference, inv.InvoiceStatus, target, nil, msg.ErrorText)
	default:
		err = s.InvoiceRepo.UpdateStatus(ctx, inv.Reference, inv.InvoiceStatus, target, nil, nil)
	}
	if ierr.IsInvalidOperation(err) {
		// another report advanced the invoice first, keep its state
		s.Logger.Warnw("invoice status changed concurrently, dropping transition",
			"invoice_reference", inv.Reference,
			"target_status", target,
		)
		return nil
	}
	return err
}

func (s *feedbackService) ListFeedback(ctx context.Context, invoiceReference string) (*dto.ListFeedbackResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceReference)
	if err != nil {
		return nil, err
	}

	response := &dto.ListFeedbackResponse{Items: []*dto.FeedbackResponse{}}
	if inv.ExternalOrderRef == nil {
		return response, nil
	}

	records, err := s.FeedbackRepo.ListByExternalOrderRef(ctx, *inv.ExternalOrderRef)
	if err != nil {
		return nil, err
	}

	response.Items = lo.Map(records, func(r *feedback.Feedback, _ int) *dto.FeedbackResponse {
		return &dto.FeedbackResponse{Feedback: r}
	})
	response.Total = len(response.Items)
	return response, nil
}
