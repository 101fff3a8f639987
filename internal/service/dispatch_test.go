package service

import (
	"testing"
	"time"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/cache"
	"github.com/invopeak/fakturaserie/internal/domain/feedback"
	"github.com/invopeak/fakturaserie/internal/idempotency"
	"github.com/invopeak/fakturaserie/internal/testutil"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DispatchServiceSuite struct {
	testutil.BaseServiceTestSuite
	seriesService       SeriesService
	cancellationService CancellationService
	dispatchService     DispatchService
	invoiceRepo         *testutil.InMemoryInvoiceStore
	feedbackRepo        *testutil.InMemoryFeedbackStore
}

func TestDispatchService(t *testing.T) {
	suite.Run(t, new(DispatchServiceSuite))
}

func (s *DispatchServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.invoiceRepo = stores.InvoiceRepo.(*testutil.InMemoryInvoiceStore)
	s.feedbackRepo = stores.FeedbackRepo.(*testutil.InMemoryFeedbackStore)

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
	s.dispatchService = NewDispatchService(params)
}

// createSeries builds a monthly series whose first two invoices are already
// due and whose third is scheduled in the future
func (s *DispatchServiceSuite) createSeries(caseRef string) *dto.SeriesResponse {
	now := time.Now().UTC()
	start := types.BeginningOfMonth(now.AddDate(0, -1, 0))
	end := types.EndOfMonth(now.AddDate(0, 1, 0))

	resp, err := s.seriesService.CreateSeries(s.GetContext(), dto.CreateSeriesRequest{
		CaseReference: caseRef,
		SubjectID:     "12345678901",
		Interval:      types.BillingIntervalMonthly,
		StartDate:     start,
		EndDate:       end,
		SubPeriods: []dto.SubPeriodRequest{
			{
				StartDate:    start,
				EndDate:      end,
				MonthlyPrice: decimal.NewFromInt(1000),
			},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Invoices, 3)
	return resp
}

func (s *DispatchServiceSuite) TestRunBillingDispatch() {
	created := s.createSeries("CASE-DISPATCH-1")

	result, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(2, result.Processed)
	s.Equal(2, result.Dispatched)
	s.Equal(0, result.Failed)
	s.Len(s.GetOrderPublisher().Messages(), 2)

	invoices, err := s.invoiceRepo.ListBySeries(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Equal(types.InvoiceStatusOrdered, invoices[0].InvoiceStatus)
	s.Equal(types.InvoiceStatusOrdered, invoices[1].InvoiceStatus)
	s.Equal(types.InvoiceStatusDraft, invoices[2].InvoiceStatus)

	s.NotNil(invoices[0].ExternalOrderRef)
	s.NotNil(invoices[0].SentAt)

	// the external reference is derived from the invoice reference
	expected := idempotency.NewGenerator().GenerateKey(idempotency.ScopeOrderDispatch, map[string]interface{}{
		"invoice_reference": invoices[0].Reference,
	})
	s.Equal(expected, *invoices[0].ExternalOrderRef)
}

func (s *DispatchServiceSuite) TestRunBillingDispatchPublishesOnlyOnce() {
	s.createSeries("CASE-DISPATCH-2")

	_, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)
	s.Len(s.GetOrderPublisher().Messages(), 2)

	result, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(0, result.Processed)
	s.Len(s.GetOrderPublisher().Messages(), 2)
}

func (s *DispatchServiceSuite) TestRunBillingDispatchPublishFailure() {
	created := s.createSeries("CASE-DISPATCH-3")

	s.GetOrderPublisher().FailNext()
	result, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(2, result.Processed)
	s.Equal(1, result.Dispatched)
	s.Equal(1, result.Failed)

	// the failed invoice stays DRAFT and is retried on the next run
	invoices, err := s.invoiceRepo.ListBySeries(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Equal(types.InvoiceStatusDraft, invoices[0].InvoiceStatus)

	result, err = s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Dispatched)
}

func (s *DispatchServiceSuite) TestRunBillingDispatchCancelsDraftsOfCancelledSeries() {
	created := s.createSeries("CASE-DISPATCH-4")

	owner, err := s.GetStores().SeriesRepo.Get(s.GetContext(), created.Reference)
	s.Require().NoError(err)
	owner.SeriesStatus = types.SeriesStatusCancelled
	s.Require().NoError(s.GetStores().SeriesRepo.Update(s.GetContext(), owner))

	result, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(2, result.Processed)
	s.Equal(0, result.Dispatched)
	s.Equal(2, result.Skipped)
	s.Equal(0, result.Failed)
	s.Len(s.GetOrderPublisher().Messages(), 0)

	invoices, err := s.invoiceRepo.ListBySeries(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, invoices[0].InvoiceStatus)
	s.Equal(types.InvoiceStatusCancelled, invoices[1].InvoiceStatus)

	// the drafts are gone from the due query on the next run
	result, err = s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(0, result.Processed)
}

func (s *DispatchServiceSuite) TestRunCreditDispatch() {
	created := s.createSeries("CASE-CREDIT-1")

	_, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)

	cancelResp, err := s.cancellationService.CancelSeries(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Require().NotEmpty(cancelResp.CreditSeriesReference)

	result, err := s.dispatchService.RunCreditDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(2, result.Dispatched)

	credits, err := s.invoiceRepo.ListBySeries(s.GetContext(), cancelResp.CreditSeriesReference)
	s.NoError(err)
	s.Require().Len(credits, 2)
	for _, credit := range credits {
		s.Equal(types.InvoiceStatusOrdered, credit.InvoiceStatus)

		msg, ok := s.GetOrderPublisher().MessageForInvoice(credit.Reference)
		s.Require().True(ok)
		s.Equal(*credit.CreditOf, msg.ExternalCreditRef)
		s.True(msg.Lines[0].Amount.IsNegative())
	}

	// nothing left to credit on the next run
	result, err = s.dispatchService.RunCreditDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(0, result.Processed)
}

func (s *DispatchServiceSuite) TestRunCreditDispatchReversesUnpaid() {
	created := s.createSeries("CASE-UNPAID-1")

	_, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)

	invoices, err := s.invoiceRepo.ListBySeries(s.GetContext(), created.Reference)
	s.NoError(err)
	dispatched := invoices[0]
	s.Require().NotNil(dispatched.ExternalOrderRef)

	// unpaid report older than the grace period
	reportDate := time.Now().UTC().Add(-s.GetConfig().Scheduler.UnpaidGracePeriod - time.Hour)
	err = s.feedbackRepo.Append(s.GetContext(), &feedback.Feedback{
		ID:               "fb_1",
		ExternalOrderRef: *dispatched.ExternalOrderRef,
		ReportDate:       reportDate,
		FeedbackStatus:   types.FeedbackStatusUnpaid,
		UnpaidAmount:     decimal.NewFromInt(1000),
	})
	s.Require().NoError(err)

	result, err := s.dispatchService.RunCreditDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Dispatched)

	reversed, err := s.invoiceRepo.Get(s.GetContext(), dispatched.Reference)
	s.NoError(err)
	s.Require().NotNil(reversed.ExternalCreditRef)
	s.Contains(*reversed.ExternalCreditRef, types.SHORT_ID_PREFIX_CREDIT_NOTE)

	msg, ok := s.GetOrderPublisher().MessageForInvoice(dispatched.Reference)
	s.Require().True(ok)
	s.Equal(*dispatched.ExternalOrderRef, msg.ExternalCreditRef)
	s.True(msg.Lines[0].Amount.IsNegative())

	// already credited, the next run is a no-op
	result, err = s.dispatchService.RunCreditDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(0, result.Dispatched)
}

func (s *DispatchServiceSuite) TestRunCreditDispatchRespectsGracePeriod() {
	created := s.createSeries("CASE-UNPAID-2")

	_, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)

	invoices, err := s.invoiceRepo.ListBySeries(s.GetContext(), created.Reference)
	s.NoError(err)
	dispatched := invoices[0]

	// recent unpaid report, still within the grace period
	err = s.feedbackRepo.Append(s.GetContext(), &feedback.Feedback{
		ID:               "fb_recent",
		ExternalOrderRef: *dispatched.ExternalOrderRef,
		ReportDate:       time.Now().UTC().Add(-time.Hour),
		FeedbackStatus:   types.FeedbackStatusUnpaid,
		UnpaidAmount:     decimal.NewFromInt(1000),
	})
	s.Require().NoError(err)

	result, err := s.dispatchService.RunCreditDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(0, result.Processed)

	unchanged, err := s.invoiceRepo.Get(s.GetContext(), dispatched.Reference)
	s.NoError(err)
	s.Nil(unchanged.ExternalCreditRef)
}

func (s *DispatchServiceSuite) TestDispatchHonorsBatchSize() {
	s.createSeries("CASE-BATCH-1")

	s.GetConfig().Scheduler.BatchSize = 1
	defer func() { s.GetConfig().Scheduler.BatchSize = 200 }()

	result, err := s.dispatchService.RunBillingDispatch(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)
}
