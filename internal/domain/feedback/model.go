package feedback

import (
	"time"

	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
)

// Feedback is a status report received from the external billing system for
// a dispatched invoice. Records are append-only and never mutated; together
// they form the audit trail of an invoice.
type Feedback struct {
	ID                    string               `json:"id"`
	ExternalOrderRef      string               `json:"external_order_ref"`
	ExternalInvoiceNumber string               `json:"external_invoice_number"`
	ReportDate            time.Time            `json:"report_date"`
	FeedbackStatus        types.FeedbackStatus `json:"status"`
	BilledAmount          decimal.Decimal      `json:"billed_amount"`
	UnpaidAmount          decimal.Decimal      `json:"unpaid_amount"`
	ErrorText             *string              `json:"error_text,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
}

func (f *Feedback) Validate() error {
	if f.ExternalOrderRef == "" {
		return ierr.NewError("feedback validation failed").
			WithHint("external_order_ref is required").
			Mark(ierr.ErrValidation)
	}

	if f.ReportDate.IsZero() {
		return ierr.NewError("feedback validation failed").
			WithHint("report_date is required").
			Mark(ierr.ErrValidation)
	}

	return f.FeedbackStatus.Validate()
}
