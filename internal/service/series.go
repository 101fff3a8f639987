package service

import (
	"context"
	"fmt"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/cache"
	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	"github.com/invopeak/fakturaserie/internal/domain/periods"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/publisher"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
)

// SeriesService manages the lifecycle of invoice series
type SeriesService interface {
	// CreateSeries expands the billing range into invoices and persists the
	// series as ACTIVE with all invoices in DRAFT
	CreateSeries(ctx context.Context, req dto.CreateSeriesRequest) (*dto.SeriesResponse, error)

	// GetSeries retrieves a series with its invoices
	GetSeries(ctx context.Context, reference string) (*dto.SeriesResponse, error)

	// ListSeries retrieves series matching the filter, without invoices
	ListSeries(ctx context.Context, filter *series.Filter) ([]*dto.SeriesResponse, error)
}

type seriesService struct {
	ServiceParams
}

// NewSeriesService creates a new series service
func NewSeriesService(params ServiceParams) SeriesService {
	return &seriesService{ServiceParams: params}
}

func (s *seriesService) CreateSeries(ctx context.Context, req dto.CreateSeriesRequest) (*dto.SeriesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// at most one non-terminal series may exist per case reference
	exists, err := s.SeriesRepo.ExistsActiveForCase(ctx, req.CaseReference)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ierr.NewError("active series already exists for case").
			WithHintf("an active series already exists for case reference %s", req.CaseReference).
			WithReportableDetails(map[string]any{
				"case_reference": req.CaseReference,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	newSeries := req.ToSeries(ctx)
	if err := newSeries.Validate(); err != nil {
		return nil, err
	}

	plans, err := periods.Expand(newSeries.StartDate, newSeries.EndDate, newSeries.Interval, newSeries.SubPeriods)
	if err != nil {
		return nil, err
	}

	invoices := lo.Map(plans, func(plan periods.InvoicePlan, _ int) *invoice.Invoice {
		return s.buildInvoice(ctx, newSeries, plan)
	})

	err = s.DB.WithTx(ctx, func(tx context.Context) error {
		if err := s.SeriesRepo.Create(tx, newSeries); err != nil {
			return err
		}
		for _, inv := range invoices {
			if err := s.InvoiceRepo.Create(tx, inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.EventPublisher.PublishEvent(ctx, publisher.EventSeriesCreated, newSeries.Reference, newSeries.CaseReference)

	s.Logger.Infow("created invoice series",
		"series_reference", newSeries.Reference,
		"case_reference", newSeries.CaseReference,
		"interval", newSeries.Interval,
		"invoice_count", len(invoices),
	)

	return dto.NewSeriesResponse(newSeries, invoices), nil
}

// buildInvoice turns one expansion plan into a DRAFT invoice
func (s *seriesService) buildInvoice(ctx context.Context, owner *series.Series, plan periods.InvoicePlan) *invoice.Invoice {
	sendDate := plan.ScheduledSendDate.AddDate(0, 0, s.Config.Scheduler.SendDateOffsetDays)

	inv := &invoice.Invoice{
		Reference:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		SeriesReference:   owner.Reference,
		InvoiceStatus:     types.InvoiceStatusDraft,
		ScheduledSendDate: sendDate,
		Description: fmt.Sprintf("Period %s to %s",
			plan.PeriodFrom.Format("2006-01-02"), plan.PeriodTo.Format("2006-01-02")),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}

	inv.Lines = lo.Map(plan.Lines, func(line periods.PlannedLine, _ int) *invoice.Line {
		return &invoice.Line{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE),
			PeriodFrom:   line.PeriodFrom,
			PeriodTo:     line.PeriodTo,
			Description:  line.Description,
			MonthlyPrice: line.MonthlyPrice,
			Amount:       line.Amount,
		}
	})

	inv.TotalAmount = inv.SumLines()
	return inv
}

func (s *seriesService) GetSeries(ctx context.Context, reference string) (*dto.SeriesResponse, error) {
	found, err := s.getSeries(ctx, reference)
	if err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.ListBySeries(ctx, reference)
	if err != nil {
		return nil, err
	}

	return dto.NewSeriesResponse(found, invoices), nil
}

func (s *seriesService) ListSeries(ctx context.Context, filter *series.Filter) ([]*dto.SeriesResponse, error) {
	if filter == nil {
		filter = &series.Filter{}
	}

	items, err := s.SeriesRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return lo.Map(items, func(item *series.Series, _ int) *dto.SeriesResponse {
		return dto.NewSeriesResponse(item, nil)
	}), nil
}

// getSeries loads a series through the read cache
func (s *seriesService) getSeries(ctx context.Context, reference string) (*series.Series, error) {
	cacheKey := cache.PrefixSeries + reference
	if cached, ok := s.Cache.Get(ctx, cacheKey); ok {
		if found, ok := cached.(*series.Series); ok {
			return found, nil
		}
	}

	found, err := s.SeriesRepo.Get(ctx, reference)
	if err != nil {
		return nil, err
	}

	s.Cache.Set(ctx, cacheKey, found, cache.DefaultExpiration)
	return found, nil
}
