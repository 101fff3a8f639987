package types

import (
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle.
// The transition out of DRAFT is the sole dispatch gate: an invoice whose
// status has left DRAFT carries an external reference and must never be
// published again.
type InvoiceStatus string

const (
	// InvoiceStatusDraft indicates the invoice is waiting for its scheduled send date
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	// InvoiceStatusOrdered indicates the invoice was published to the external
	// billing system and carries an external order reference
	InvoiceStatusOrdered InvoiceStatus = "ORDERED"
	// InvoiceStatusSent indicates the external system confirmed receipt
	InvoiceStatusSent InvoiceStatus = "SENT"
	// InvoiceStatusPaid indicates the external system reported payment
	InvoiceStatusPaid InvoiceStatus = "PAID"
	// InvoiceStatusFailed indicates the external system reported an error
	InvoiceStatusFailed InvoiceStatus = "FAILED"
	// InvoiceStatusCancelled indicates the invoice was cancelled before dispatch
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

// IsDispatched reports whether the invoice has already been published
func (s InvoiceStatus) IsDispatched() bool {
	return s != InvoiceStatusDraft && s != InvoiceStatusCancelled
}

// CanTransition reports whether the status may move to the target status
func (s InvoiceStatus) CanTransition(target InvoiceStatus) bool {
	allowed, ok := invoiceStatusTransitions[s]
	if !ok {
		return false
	}
	return lo.Contains(allowed, target)
}

var invoiceStatusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusOrdered, InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusOrdered: {InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusFailed},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusFailed},
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusOrdered,
		InvoiceStatusSent,
		InvoiceStatusPaid,
		InvoiceStatusFailed,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// FeedbackStatus is the status reported by the external billing system
// for a dispatched invoice
type FeedbackStatus string

const (
	FeedbackStatusReceived FeedbackStatus = "RECEIVED"
	FeedbackStatusPaid     FeedbackStatus = "PAID"
	FeedbackStatusUnpaid   FeedbackStatus = "UNPAID"
	FeedbackStatusError    FeedbackStatus = "ERROR"
)

func (s FeedbackStatus) String() string {
	return string(s)
}

func (s FeedbackStatus) Validate() error {
	allowed := []FeedbackStatus{
		FeedbackStatusReceived,
		FeedbackStatusPaid,
		FeedbackStatusUnpaid,
		FeedbackStatusError,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid feedback status").
			WithHint("Please provide a valid feedback status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
