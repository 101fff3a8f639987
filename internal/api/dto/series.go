package dto

import (
	"context"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreateSeriesRequest is the request to create a new invoice series
type CreateSeriesRequest struct {
	CaseReference  string                 `json:"case_reference" binding:"required"`
	SubjectID      string                 `json:"subject_id" binding:"required"`
	Representative *RepresentativeRequest `json:"representative,omitempty"`
	BuyerReference string                 `json:"buyer_reference"`
	Interval       types.BillingInterval  `json:"interval" binding:"required"`
	StartDate      time.Time              `json:"start_date" binding:"required"`
	EndDate        time.Time              `json:"end_date" binding:"required"`
	SubPeriods     []SubPeriodRequest     `json:"sub_periods" binding:"required"`
}

// RepresentativeRequest identifies an organization or person acting on the
// subject's behalf
type RepresentativeRequest struct {
	OrganizationNumber string `json:"organization_number,omitempty"`
	Name               string `json:"name,omitempty"`
}

// SubPeriodRequest is one priced interval of the request
type SubPeriodRequest struct {
	StartDate    time.Time       `json:"start_date" binding:"required"`
	EndDate      time.Time       `json:"end_date" binding:"required"`
	MonthlyPrice decimal.Decimal `json:"monthly_price" binding:"required"`
	Description  string          `json:"description"`
}

func (r *CreateSeriesRequest) Validate() error {
	if r.CaseReference == "" {
		return ierr.NewError("invalid series request").
			WithHint("case_reference is required").
			Mark(ierr.ErrValidation)
	}

	if r.SubjectID == "" {
		return ierr.NewError("invalid series request").
			WithHint("subject_id is required").
			Mark(ierr.ErrValidation)
	}

	if err := r.Interval.Validate(); err != nil {
		return err
	}

	if r.EndDate.Before(r.StartDate) {
		return ierr.NewError("invalid series request").
			WithHint("end_date must not be before start_date").
			Mark(ierr.ErrValidation)
	}

	if len(r.SubPeriods) == 0 {
		return ierr.NewError("invalid series request").
			WithHint("at least one sub-period is required").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ToSeries converts the request to a domain series
func (r *CreateSeriesRequest) ToSeries(ctx context.Context) *series.Series {
	s := &series.Series{
		Reference:      types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SERIES),
		SubjectID:      r.SubjectID,
		BuyerReference: r.BuyerReference,
		CaseReference:  r.CaseReference,
		Interval:       r.Interval,
		StartDate:      types.DateOnly(r.StartDate),
		EndDate:        types.DateOnly(r.EndDate),
		SeriesStatus:   types.SeriesStatusActive,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	if r.Representative != nil {
		s.Representative = &series.Representative{
			OrganizationNumber: r.Representative.OrganizationNumber,
			Name:               r.Representative.Name,
		}
	}

	s.SubPeriods = lo.Map(r.SubPeriods, func(p SubPeriodRequest, _ int) series.SubPeriod {
		return series.SubPeriod{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUB_PERIOD),
			StartDate:    types.DateOnly(p.StartDate),
			EndDate:      types.DateOnly(p.EndDate),
			MonthlyPrice: p.MonthlyPrice,
			Description:  p.Description,
		}
	})

	return s
}

// SeriesResponse is the API representation of a series with its invoices
type SeriesResponse struct {
	*series.Series
	Invoices []*InvoiceResponse `json:"invoices,omitempty"`
}

// NewSeriesResponse builds a response from domain models
func NewSeriesResponse(s *series.Series, invoices []*invoice.Invoice) *SeriesResponse {
	return &SeriesResponse{
		Series: s,
		Invoices: lo.Map(invoices, func(inv *invoice.Invoice, _ int) *InvoiceResponse {
			return NewInvoiceResponse(inv)
		}),
	}
}

// CancelSeriesResponse carries the reference of the generated credit series
type CancelSeriesResponse struct {
	CreditSeriesReference string `json:"credit_series_reference"`
}

// InvoiceResponse is the API representation of an invoice
type InvoiceResponse struct {
	*invoice.Invoice
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{Invoice: inv}
}
