package invoice

import (
	"time"

	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice represents a single billable document for one billing period,
// composed of lines. Once the status leaves DRAFT the line set is immutable.
type Invoice struct {
	Reference         string              `json:"reference"`
	SeriesReference   string              `json:"series_reference"`
	InvoiceStatus     types.InvoiceStatus `json:"status"`
	Lines             []*Line             `json:"lines,omitempty"`
	TotalAmount       decimal.Decimal     `json:"total_amount"`
	ScheduledSendDate time.Time           `json:"scheduled_send_date"`
	Description       string              `json:"description,omitempty"`
	// ExternalOrderRef is recorded atomically with the transition out of
	// DRAFT; its presence is proof of a prior publish
	ExternalOrderRef *string `json:"external_order_ref,omitempty"`
	// ExternalCreditRef links a reversal to the external order it credits
	ExternalCreditRef *string `json:"external_credit_ref,omitempty"`
	// CreditOf is the external order reference of the invoice this one
	// reverses; set only on invoices produced by cancellation
	CreditOf     *string    `json:"credit_of,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	types.BaseModel
}

// Line is a single invoice line covering part of a billing period
type Line struct {
	ID           string          `json:"id"`
	PeriodFrom   time.Time       `json:"period_from"`
	PeriodTo     time.Time       `json:"period_to"`
	Description  string          `json:"description"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	Amount       decimal.Decimal `json:"amount"`
}

// IsCredit reports whether this invoice reverses a previously dispatched one
func (i *Invoice) IsCredit() bool {
	return i.CreditOf != nil
}

// IsDue reports whether the invoice should be dispatched at the given time
func (i *Invoice) IsDue(now time.Time) bool {
	return i.InvoiceStatus == types.InvoiceStatusDraft &&
		!types.DateOnly(i.ScheduledSendDate).After(types.DateOnly(now))
}

// SumLines returns the sum of all line amounts rounded to 2 decimals
func (i *Invoice) SumLines() decimal.Decimal {
	total := decimal.Zero
	for _, line := range i.Lines {
		total = total.Add(line.Amount)
	}
	return total.Round(2)
}

func (i *Invoice) Validate() error {
	if i.SeriesReference == "" {
		return ierr.NewError("invoice validation failed").
			WithHint("series_reference is required").
			Mark(ierr.ErrValidation)
	}

	if i.ScheduledSendDate.IsZero() {
		return ierr.NewError("invoice validation failed").
			WithHint("scheduled_send_date is required").
			Mark(ierr.ErrValidation)
	}

	if !i.TotalAmount.Equal(i.SumLines()) {
		return ierr.NewError("invoice validation failed").
			WithHint("total_amount must equal the sum of line amounts").
			WithReportableDetails(map[string]any{
				"total_amount": i.TotalAmount,
				"line_sum":     i.SumLines(),
			}).
			Mark(ierr.ErrValidation)
	}

	for _, line := range i.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (l *Line) Validate() error {
	if l.PeriodTo.Before(l.PeriodFrom) {
		return ierr.NewError("invoice line validation failed").
			WithHint("period_to must not be before period_from").
			Mark(ierr.ErrValidation)
	}
	return nil
}
