package service

import (
	"context"
	"fmt"
	"time"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/cache"
	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/publisher"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
)

// CancellationService ends a series early. Draft invoices are cancelled in
// place; invoices already published to the external system are reversed
// through a mirror credit series whose invoices carry negated amounts.
type CancellationService interface {
	CancelSeries(ctx context.Context, reference string) (*dto.CancelSeriesResponse, error)
}

type cancellationService struct {
	ServiceParams
}

// NewCancellationService creates a new cancellation service
func NewCancellationService(params ServiceParams) CancellationService {
	return &cancellationService{ServiceParams: params}
}

func (s *cancellationService) CancelSeries(ctx context.Context, reference string) (*dto.CancelSeriesResponse, error) {
	original, err := s.SeriesRepo.Get(ctx, reference)
	if err != nil {
		return nil, err
	}

	if original.IsTerminal() {
		return nil, ierr.NewError("series cannot be cancelled").
			WithHintf("series %s is already %s", reference, original.SeriesStatus).
			WithReportableDetails(map[string]any{
				"series_reference": reference,
				"status":           original.SeriesStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	invoices, err := s.InvoiceRepo.ListBySeries(ctx, reference)
	if err != nil {
		return nil, err
	}

	// the presence of an external order reference is the proof of dispatch
	dispatched := lo.Filter(invoices, func(inv *invoice.Invoice, _ int) bool {
		return inv.ExternalOrderRef != nil
	})
	drafts := lo.Filter(invoices, func(inv *invoice.Invoice, _ int) bool {
		return inv.InvoiceStatus == types.InvoiceStatusDraft
	})

	var creditSeries *series.Series
	var credits []*invoice.Invoice
	if len(dispatched) > 0 {
		creditSeries = s.buildCreditSeries(ctx, original)
		credits = lo.Map(dispatched, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
			return s.buildCreditInvoice(ctx, creditSeries, inv)
		})
	}

	err = s.DB.WithTx(ctx, func(tx context.Context) error {
		for _, draft := range drafts {
			if err := s.InvoiceRepo.CancelDraft(tx, draft.Reference); err != nil {
				return err
			}
		}

		if creditSeries != nil {
			original.SeriesStatus = types.SeriesStatusFinished
			original.ReplacedBy = lo.ToPtr(creditSeries.Reference)
		} else {
			original.SeriesStatus = types.SeriesStatusCancelled
		}

		// the original must leave ACTIVE before the credit series is
		// inserted, or the one-active-series-per-case constraint fires
		original.UpdatedAt = time.Now().UTC()
		original.UpdatedBy = types.GetUserID(tx)
		if err := s.SeriesRepo.Update(tx, original); err != nil {
			return err
		}

		if creditSeries != nil {
			if err := s.SeriesRepo.Create(tx, creditSeries); err != nil {
				return err
			}
			for _, credit := range credits {
				if err := s.InvoiceRepo.Create(tx, credit); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Cache.Delete(ctx, cache.PrefixSeries+reference)
	s.EventPublisher.PublishEvent(ctx, publisher.EventSeriesCancelled, reference, original.CaseReference)

	response := &dto.CancelSeriesResponse{}
	if creditSeries != nil {
		response.CreditSeriesReference = creditSeries.Reference
	}

	s.Logger.Infow("cancelled invoice series",
		"series_reference", reference,
		"cancelled_drafts", len(drafts),
		"credited_invoices", len(credits),
		"credit_series_reference", response.CreditSeriesReference,
	)

	return response, nil
}

// buildCreditSeries mirrors the original series with negated prices
func (s *cancellationService) buildCreditSeries(ctx context.Context, original *series.Series) *series.Series {
	credit := &series.Series{
		Reference:      types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CREDIT),
		SubjectID:      original.SubjectID,
		Representative: original.Representative,
		BuyerReference: original.BuyerReference,
		CaseReference:  original.CaseReference,
		Interval:       original.Interval,
		StartDate:      original.StartDate,
		EndDate:        original.EndDate,
		SeriesStatus:   types.SeriesStatusActive,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	credit.SubPeriods = lo.Map(original.SubPeriods, func(p series.SubPeriod, _ int) series.SubPeriod {
		return series.SubPeriod{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUB_PERIOD),
			StartDate:    p.StartDate,
			EndDate:      p.EndDate,
			MonthlyPrice: p.MonthlyPrice.Neg(),
			Description:  p.Description,
		}
	})

	return credit
}

// buildCreditInvoice mirrors a dispatched invoice with negated amounts. The
// credit is due immediately so the next crediting run picks it up.
func (s *cancellationService) buildCreditInvoice(ctx context.Context, creditSeries *series.Series, original *invoice.Invoice) *invoice.Invoice {
	credit := &invoice.Invoice{
		Reference:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		SeriesReference:   creditSeries.Reference,
		InvoiceStatus:     types.InvoiceStatusDraft,
		ScheduledSendDate: types.DateOnly(time.Now().UTC()),
		Description:       fmt.Sprintf("Credit of %s", original.Reference),
		CreditOf:          original.ExternalOrderRef,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}

	credit.Lines = lo.Map(original.Lines, func(line *invoice.Line, _ int) *invoice.Line {
		return &invoice.Line{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE),
			PeriodFrom:   line.PeriodFrom,
			PeriodTo:     line.PeriodTo,
			Description:  line.Description,
			MonthlyPrice: line.MonthlyPrice.Neg(),
			Amount:       line.Amount.Neg(),
		}
	})

	credit.TotalAmount = credit.SumLines()
	return credit
}
