package service

import (
	"testing"
	"time"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/cache"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/publisher"
	"github.com/invopeak/fakturaserie/internal/testutil"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CancellationServiceSuite struct {
	testutil.BaseServiceTestSuite
	seriesService       SeriesService
	cancellationService CancellationService
	invoiceRepo         *testutil.InMemoryInvoiceStore
}

func TestCancellationService(t *testing.T) {
	suite.Run(t, new(CancellationServiceSuite))
}

func (s *CancellationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.invoiceRepo = stores.InvoiceRepo.(*testutil.InMemoryInvoiceStore)

	params := ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		DB:             s.GetDB(),
		Cache:          cache.NewInMemoryCache(),
		SeriesRepo:     stores.SeriesRepo,
		InvoiceRepo:    stores.InvoiceRepo,
		FeedbackRepo:   stores.FeedbackRepo,
		LeaseRepo:      stores.LeaseRepo,
		OrderPublisher: s.GetOrderPublisher(),
		EventPublisher: s.GetEventPublisher(),
	}
	s.seriesService = NewSeriesService(params)
	s.cancellationService = NewCancellationService(params)
}

func (s *CancellationServiceSuite) createSeries() *dto.SeriesResponse {
	resp, err := s.seriesService.CreateSeries(s.GetContext(), dto.CreateSeriesRequest{
		CaseReference: "CASE-CANCEL-1",
		SubjectID:     "12345678901",
		Interval:      types.BillingIntervalMonthly,
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		SubPeriods: []dto.SubPeriodRequest{
			{
				StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				EndDate:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(1000),
			},
		},
	})
	s.Require().NoError(err)
	return resp
}

func (s *CancellationServiceSuite) TestCancelSeriesNothingDispatched() {
	created := s.createSeries()

	resp, err := s.cancellationService.CancelSeries(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Empty(resp.CreditSeriesReference)

	cancelled, err := s.GetStores().SeriesRepo.Get(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Equal(types.SeriesStatusCancelled, cancelled.SeriesStatus)
	s.Nil(cancelled.ReplacedBy)

	invoices, err := s.invoiceRepo.ListBySeries(s.GetContext(), created.Reference)
	s.NoError(err)
	for _, inv := range invoices {
		s.Equal(types.InvoiceStatusCancelled, inv.InvoiceStatus)
	}

	s.True(s.GetEventPublisher().HasEvent(publisher.EventSeriesCancelled, created.Reference))
}

func (s *CancellationServiceSuite) TestCancelSeriesWithDispatchedInvoices() {
	created := s.createSeries()

	// first invoice already published to the external system
	first := created.Invoices[0]
	err := s.invoiceRepo.MarkDispatched(s.GetContext(), first.Reference,
		types.InvoiceStatusOrdered, "order_dispatch-abc123", s.GetNow())
	s.Require().NoError(err)

	resp, err := s.cancellationService.CancelSeries(s.GetContext(), created.Reference)
	s.NoError(err)
	s.NotEmpty(resp.CreditSeriesReference)
	s.Contains(resp.CreditSeriesReference, types.UUID_PREFIX_CREDIT+"_")

	original, err := s.GetStores().SeriesRepo.Get(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Equal(types.SeriesStatusFinished, original.SeriesStatus)
	s.Require().NotNil(original.ReplacedBy)
	s.Equal(resp.CreditSeriesReference, *original.ReplacedBy)

	creditSeries, err := s.GetStores().SeriesRepo.Get(s.GetContext(), resp.CreditSeriesReference)
	s.NoError(err)
	s.Equal(types.SeriesStatusActive, creditSeries.SeriesStatus)
	s.True(creditSeries.SubPeriods[0].MonthlyPrice.Equal(decimal.NewFromInt(-1000)))

	credits, err := s.invoiceRepo.ListBySeries(s.GetContext(), resp.CreditSeriesReference)
	s.NoError(err)
	s.Require().Len(credits, 1)
	s.Equal(types.InvoiceStatusDraft, credits[0].InvoiceStatus)
	s.True(credits[0].IsCredit())
	s.Equal("order_dispatch-abc123", *credits[0].CreditOf)
	s.True(credits[0].TotalAmount.Equal(first.TotalAmount.Neg()))
	s.True(credits[0].IsDue(time.Now().UTC()))

	// undispatched invoices are cancelled, the dispatched one keeps its state
	invoices, err := s.invoiceRepo.ListBySeries(s.GetContext(), created.Reference)
	s.NoError(err)
	for _, inv := range invoices {
		if inv.Reference == first.Reference {
			s.Equal(types.InvoiceStatusOrdered, inv.InvoiceStatus)
		} else {
			s.Equal(types.InvoiceStatusCancelled, inv.InvoiceStatus)
		}
	}
}

func (s *CancellationServiceSuite) TestCancelSeriesAlreadyTerminal() {
	created := s.createSeries()

	_, err := s.cancellationService.CancelSeries(s.GetContext(), created.Reference)
	s.NoError(err)

	_, err = s.cancellationService.CancelSeries(s.GetContext(), created.Reference)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *CancellationServiceSuite) TestCancelSeriesNotFound() {
	_, err := s.cancellationService.CancelSeries(s.GetContext(), "fs_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
