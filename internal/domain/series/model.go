package series

import (
	"time"

	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
)

// Series represents a billing agreement spanning a date range. It owns an
// ordered set of invoices generated by expanding the range against its
// priced sub-periods.
type Series struct {
	Reference      string                `json:"reference"`
	SubjectID      string                `json:"subject_id"`
	Representative *Representative       `json:"representative,omitempty"`
	BuyerReference string                `json:"buyer_reference"`
	CaseReference  string                `json:"case_reference"`
	Interval       types.BillingInterval `json:"interval"`
	StartDate      time.Time             `json:"start_date"`
	EndDate        time.Time             `json:"end_date"`
	SeriesStatus   types.SeriesStatus    `json:"status"`
	SubPeriods     []SubPeriod           `json:"sub_periods,omitempty"`
	// ReplacedBy points at the credit series that superseded this one
	ReplacedBy *string `json:"replaced_by,omitempty"`
	types.BaseModel
}

// Representative is an organization or person acting on the subject's behalf
type Representative struct {
	OrganizationNumber string `json:"organization_number,omitempty"`
	Name               string `json:"name,omitempty"`
}

// SubPeriod is a priced interval within the series' overall date range
type SubPeriod struct {
	ID           string          `json:"id"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	Description  string          `json:"description"`
}

// IsTerminal reports whether the series can no longer be cancelled or extended
func (s *Series) IsTerminal() bool {
	return s.SeriesStatus.IsTerminal()
}

func (s *Series) Validate() error {
	if s.SubjectID == "" {
		return ierr.NewError("series validation failed").
			WithHint("subject_id is required").
			Mark(ierr.ErrValidation)
	}

	if s.CaseReference == "" {
		return ierr.NewError("series validation failed").
			WithHint("case_reference is required").
			Mark(ierr.ErrValidation)
	}

	if s.EndDate.Before(s.StartDate) {
		return ierr.NewError("series validation failed").
			WithHint("end_date must not be before start_date").
			Mark(ierr.ErrValidation)
	}

	if err := s.Interval.Validate(); err != nil {
		return err
	}

	for i := range s.SubPeriods {
		if err := s.SubPeriods[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (p *SubPeriod) Validate() error {
	if p.EndDate.Before(p.StartDate) {
		return ierr.NewError("sub-period validation failed").
			WithHint("end_date must not be before start_date").
			WithReportableDetails(map[string]any{
				"start_date": p.StartDate,
				"end_date":   p.EndDate,
			}).
			Mark(ierr.ErrValidation)
	}

	if p.MonthlyPrice.IsNegative() {
		return ierr.NewError("sub-period validation failed").
			WithHint("monthly_price must be non negative").
			Mark(ierr.ErrValidation)
	}

	return nil
}
