package dto

import (
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/feedback"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
)

// FeedbackMessage is the inbound status report from the external billing
// system, correlated to an invoice by its external order reference
type FeedbackMessage struct {
	ExternalOrderRef      string               `json:"external_order_ref"`
	ExternalInvoiceNumber string               `json:"external_invoice_number"`
	ReportDate            time.Time            `json:"report_date"`
	FeedbackStatus        types.FeedbackStatus `json:"status"`
	BilledAmount          decimal.Decimal      `json:"billed_amount"`
	UnpaidAmount          decimal.Decimal      `json:"unpaid_amount"`
	ErrorText             *string              `json:"error_text,omitempty"`
}

func (m *FeedbackMessage) Validate() error {
	if m.ExternalOrderRef == "" {
		return ierr.NewError("invalid feedback message").
			WithHint("external_order_ref is required").
			Mark(ierr.ErrValidation)
	}

	if m.ReportDate.IsZero() {
		return ierr.NewError("invalid feedback message").
			WithHint("report_date is required").
			Mark(ierr.ErrValidation)
	}

	return m.FeedbackStatus.Validate()
}

// ToFeedback converts the message to an immutable audit record
func (m *FeedbackMessage) ToFeedback() *feedback.Feedback {
	return &feedback.Feedback{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FEEDBACK),
		ExternalOrderRef:      m.ExternalOrderRef,
		ExternalInvoiceNumber: m.ExternalInvoiceNumber,
		ReportDate:            m.ReportDate,
		FeedbackStatus:        m.FeedbackStatus,
		BilledAmount:          m.BilledAmount,
		UnpaidAmount:          m.UnpaidAmount,
		ErrorText:             m.ErrorText,
		CreatedAt:             time.Now().UTC(),
	}
}

// FeedbackResponse is the API representation of a feedback record
type FeedbackResponse struct {
	*feedback.Feedback
}

// ListFeedbackResponse is the audit trail of one invoice
type ListFeedbackResponse struct {
	Items []*FeedbackResponse `json:"items"`
	Total int                 `json:"total"`
}
