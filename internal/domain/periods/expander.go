package periods

import (
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/series"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
)

// Expand partitions [start, end] into consecutive interval-aligned billing
// periods and intersects each with the priced sub-periods. Every non-empty
// period becomes one InvoicePlan whose scheduled send date is the period's
// first day; periods no sub-period touches produce no invoice.
//
// Amounts are pro-rated per calendar month: a sub-period covering a whole
// month contributes the full monthly price, a partial month contributes
// price * (covered days / days in that month), counting both boundary days.
// Line amounts are rounded half-up to 2 decimals.
func Expand(start, end time.Time, interval types.BillingInterval, subPeriods []series.SubPeriod) ([]InvoicePlan, error) {
	start, end = types.DateOnly(start), types.DateOnly(end)

	if end.Before(start) {
		return nil, ierr.NewError("invalid billing range").
			WithHint("end date must not be before start date").
			WithReportableDetails(map[string]any{
				"start_date": start,
				"end_date":   end,
			}).
			Mark(ierr.ErrValidation)
	}

	if err := interval.Validate(); err != nil {
		return nil, err
	}

	if err := validateSubPeriods(start, end, subPeriods); err != nil {
		return nil, err
	}

	months := interval.Months()
	var plans []InvoicePlan

	for cursor := start; !cursor.After(end); {
		// the period runs to the end of the calendar month `months-1`
		// months ahead of the cursor's month, clamped to the overall range
		periodEnd := types.MinDate(end, types.EndOfMonth(types.AddClampedDate(types.BeginningOfMonth(cursor), 0, months-1, 0)))

		lines := expandPeriod(cursor, periodEnd, subPeriods)
		if len(lines) > 0 {
			plans = append(plans, InvoicePlan{
				PeriodFrom:        cursor,
				PeriodTo:          periodEnd,
				ScheduledSendDate: cursor,
				Lines:             lines,
			})
		}

		cursor = periodEnd.AddDate(0, 0, 1)
	}

	return plans, nil
}

// expandPeriod emits one line per sub-period overlapping the billing period
func expandPeriod(periodFrom, periodTo time.Time, subPeriods []series.SubPeriod) []PlannedLine {
	var lines []PlannedLine
	for _, sp := range subPeriods {
		from := types.MaxDate(periodFrom, types.DateOnly(sp.StartDate))
		to := types.MinDate(periodTo, types.DateOnly(sp.EndDate))
		if to.Before(from) {
			continue
		}

		factor := monthFraction(from, to)
		lines = append(lines, PlannedLine{
			PeriodFrom:   from,
			PeriodTo:     to,
			Description:  sp.Description,
			MonthlyPrice: sp.MonthlyPrice,
			Amount:       sp.MonthlyPrice.Mul(factor).Round(2),
		})
	}
	return lines
}

// monthFraction sums, per calendar month touched by [from, to], the covered
// days divided by the days in that month. A fully covered month contributes
// exactly 1.
func monthFraction(from, to time.Time) decimal.Decimal {
	factor := decimal.Zero
	for cursor := from; !cursor.After(to); {
		monthEnd := types.MinDate(to, types.EndOfMonth(cursor))
		covered := types.DaysBetweenInclusive(cursor, monthEnd)
		factor = factor.Add(
			decimal.NewFromInt(int64(covered)).
				Div(decimal.NewFromInt(int64(types.DaysInMonth(cursor)))),
		)
		cursor = monthEnd.AddDate(0, 0, 1)
	}
	return factor
}

// validateSubPeriods rejects sub-periods lying entirely outside the billing
// range and pairs that overlap. Two sub-periods sharing only a boundary date
// count as overlapping.
func validateSubPeriods(start, end time.Time, subPeriods []series.SubPeriod) error {
	for i := range subPeriods {
		a := &subPeriods[i]
		if err := a.Validate(); err != nil {
			return err
		}

		aFrom, aTo := types.DateOnly(a.StartDate), types.DateOnly(a.EndDate)
		if aTo.Before(start) || aFrom.After(end) {
			return ierr.NewError("sub-period outside billing range").
				WithHint("each sub-period must overlap the billing range").
				WithReportableDetails(map[string]any{
					"sub_period_start": aFrom,
					"sub_period_end":   aTo,
					"range_start":      start,
					"range_end":        end,
				}).
				Mark(ierr.ErrValidation)
		}

		for j := i + 1; j < len(subPeriods); j++ {
			b := &subPeriods[j]
			bFrom, bTo := types.DateOnly(b.StartDate), types.DateOnly(b.EndDate)
			if !aFrom.After(bTo) && !bFrom.After(aTo) {
				return ierr.NewError("overlapping sub-periods").
					WithHint("sub-periods must not overlap or share a boundary date").
					WithReportableDetails(map[string]any{
						"first_start":  aFrom,
						"first_end":    aTo,
						"second_start": bFrom,
						"second_end":   bTo,
					}).
					Mark(ierr.ErrValidation)
			}
		}
	}
	return nil
}
