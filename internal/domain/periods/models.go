package periods

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoicePlan is the expansion result for one non-empty billing period:
// the blueprint from which an invoice is constructed
type InvoicePlan struct {
	PeriodFrom        time.Time
	PeriodTo          time.Time
	ScheduledSendDate time.Time
	Lines             []PlannedLine
}

// PlannedLine is one (billing period, sub-period) intersection with its
// pro-rated amount
type PlannedLine struct {
	PeriodFrom   time.Time
	PeriodTo     time.Time
	Description  string
	MonthlyPrice decimal.Decimal
	Amount       decimal.Decimal
}

// Total returns the sum of the plan's line amounts rounded to 2 decimals
func (p *InvoicePlan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.Amount)
	}
	return total.Round(2)
}
