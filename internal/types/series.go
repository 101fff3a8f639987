package types

import (
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/samber/lo"
)

// SeriesStatus represents the current state of an invoice series in its lifecycle
type SeriesStatus string

const (
	// SeriesStatusActive indicates the series is live and its invoices are being dispatched
	SeriesStatusActive SeriesStatus = "ACTIVE"
	// SeriesStatusFinished indicates the series has been superseded by a credit series
	// and is terminal; ReplacedBy points at its successor
	SeriesStatusFinished SeriesStatus = "FINISHED"
	// SeriesStatusCancelled indicates the series was cancelled before any invoice was dispatched
	SeriesStatusCancelled SeriesStatus = "CANCELLED"
)

func (s SeriesStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the series can no longer change except in status
func (s SeriesStatus) IsTerminal() bool {
	return s == SeriesStatusFinished || s == SeriesStatusCancelled
}

func (s SeriesStatus) Validate() error {
	allowed := []SeriesStatus{
		SeriesStatusActive,
		SeriesStatusFinished,
		SeriesStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid series status").
			WithHint("Please provide a valid series status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingInterval defines how often an invoice is generated within a series
type BillingInterval string

const (
	BillingIntervalMonthly   BillingInterval = "MONTHLY"
	BillingIntervalQuarterly BillingInterval = "QUARTERLY"
	BillingIntervalYearly    BillingInterval = "YEARLY"
)

func (i BillingInterval) String() string {
	return string(i)
}

// Months returns the number of calendar months covered by one billing period
func (i BillingInterval) Months() int {
	switch i {
	case BillingIntervalQuarterly:
		return 3
	case BillingIntervalYearly:
		return 12
	default:
		return 1
	}
}

func (i BillingInterval) Validate() error {
	allowed := []BillingInterval{
		BillingIntervalMonthly,
		BillingIntervalQuarterly,
		BillingIntervalYearly,
	}
	if !lo.Contains(allowed, i) {
		return ierr.NewError("invalid billing interval").
			WithHint("Please provide a valid billing interval").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
