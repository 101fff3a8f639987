package service

import (
	"testing"
	"time"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/cache"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/testutil"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type FeedbackServiceSuite struct {
	testutil.BaseServiceTestSuite
	seriesService   SeriesService
	dispatchService DispatchService
	feedbackService FeedbackService
	invoiceRepo     *testutil.InMemoryInvoiceStore

	invoiceRef  string
	externalRef string
}

func TestFeedbackService(t *testing.T) {
	suite.Run(t, new(FeedbackServiceSuite))
}

func (s *FeedbackServiceSuite) SetupTest() {
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
	s.dispatchService = NewDispatchService(params)
	s.feedbackService = NewFeedbackService(params)

	s.setupDispatchedInvoice()
}

// setupDispatchedInvoice creates a series and dispatches its first invoice
func (s *FeedbackServiceSuite) setupDispatchedInvoice() {
	now := time.Now().UTC()
	start := types.BeginningOfMonth(now)
	end := types.EndOfMonth(now)

	created, err := s.seriesService.CreateSeries(s.GetContext(), dto.CreateSeriesRequest{
		CaseReference: "CASE-FEEDBACK-1",
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

	_, err = s.dispatchService.RunBillingDispatch(s.GetContext())
	s.Require().NoError(err)

	invoices, err := s.invoiceRepo.ListBySeries(s.GetContext(), created.Reference)
	s.Require().NoError(err)
	s.Require().NotNil(invoices[0].ExternalOrderRef)

	s.invoiceRef = invoices[0].Reference
	s.externalRef = *invoices[0].ExternalOrderRef
}

func (s *FeedbackServiceSuite) newMessage(status types.FeedbackStatus) *dto.FeedbackMessage {
	return &dto.FeedbackMessage{
		ExternalOrderRef:      s.externalRef,
		ExternalInvoiceNumber: "INV-100200",
		ReportDate:            time.Now().UTC(),
		FeedbackStatus:        status,
		BilledAmount:          decimal.NewFromInt(1000),
	}
}

func (s *FeedbackServiceSuite) TestProcessFeedbackReceived() {
	err := s.feedbackService.ProcessFeedback(s.GetContext(), s.newMessage(types.FeedbackStatusReceived))
	s.NoError(err)

	inv, err := s.invoiceRepo.Get(s.GetContext(), s.invoiceRef)
	s.NoError(err)
	s.Equal(types.InvoiceStatusSent, inv.InvoiceStatus)
}

func (s *FeedbackServiceSuite) TestProcessFeedbackPaid() {
	msg := s.newMessage(types.FeedbackStatusPaid)
	err := s.feedbackService.ProcessFeedback(s.GetContext(), msg)
	s.NoError(err)

	inv, err := s.invoiceRepo.Get(s.GetContext(), s.invoiceRef)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.Require().NotNil(inv.PaidAt)
	s.Equal(msg.ReportDate, *inv.PaidAt)
}

func (s *FeedbackServiceSuite) TestProcessFeedbackError() {
	msg := s.newMessage(types.FeedbackStatusError)
	msg.ErrorText = lo.ToPtr("invalid organization number")

	err := s.feedbackService.ProcessFeedback(s.GetContext(), msg)
	s.NoError(err)

	inv, err := s.invoiceRepo.Get(s.GetContext(), s.invoiceRef)
	s.NoError(err)
	s.Equal(types.InvoiceStatusFailed, inv.InvoiceStatus)
	s.Require().NotNil(inv.ErrorMessage)
	s.Equal("invalid organization number", *inv.ErrorMessage)
}

func (s *FeedbackServiceSuite) TestProcessFeedbackDoesNotRegressPaid() {
	err := s.feedbackService.ProcessFeedback(s.GetContext(), s.newMessage(types.FeedbackStatusPaid))
	s.NoError(err)

	// a late unpaid report must not move the invoice out of PAID
	err = s.feedbackService.ProcessFeedback(s.GetContext(), s.newMessage(types.FeedbackStatusUnpaid))
	s.NoError(err)

	inv, err := s.invoiceRepo.Get(s.GetContext(), s.invoiceRef)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
}

func (s *FeedbackServiceSuite) TestUpdateStatusRejectsStaleTransition() {
	err := s.feedbackService.ProcessFeedback(s.GetContext(), s.newMessage(types.FeedbackStatusPaid))
	s.NoError(err)

	// a writer holding a stale read of the invoice must lose the race
	err = s.invoiceRepo.UpdateStatus(s.GetContext(), s.invoiceRef,
		types.InvoiceStatusOrdered, types.InvoiceStatusSent, nil, nil)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	inv, err := s.invoiceRepo.Get(s.GetContext(), s.invoiceRef)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
}

func (s *FeedbackServiceSuite) TestProcessFeedbackUnknownOrderRef() {
	msg := s.newMessage(types.FeedbackStatusPaid)
	msg.ExternalOrderRef = "unknown-ref"

	// the report is kept for the audit trail even without a matching invoice
	err := s.feedbackService.ProcessFeedback(s.GetContext(), msg)
	s.NoError(err)

	records, err := s.GetStores().FeedbackRepo.ListByExternalOrderRef(s.GetContext(), "unknown-ref")
	s.NoError(err)
	s.Len(records, 1)
}

func (s *FeedbackServiceSuite) TestProcessFeedbackValidation() {
	msg := s.newMessage(types.FeedbackStatusPaid)
	msg.ExternalOrderRef = ""

	err := s.feedbackService.ProcessFeedback(s.GetContext(), msg)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	msg = s.newMessage("UNKNOWN")
	err = s.feedbackService.ProcessFeedback(s.GetContext(), msg)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *FeedbackServiceSuite) TestListFeedback() {
	first := s.newMessage(types.FeedbackStatusReceived)
	first.ReportDate = time.Now().UTC().Add(-48 * time.Hour)
	s.NoError(s.feedbackService.ProcessFeedback(s.GetContext(), first))

	second := s.newMessage(types.FeedbackStatusPaid)
	s.NoError(s.feedbackService.ProcessFeedback(s.GetContext(), second))

	resp, err := s.feedbackService.ListFeedback(s.GetContext(), s.invoiceRef)
	s.NoError(err)
	s.Equal(2, resp.Total)
	// newest first
	s.Equal(types.FeedbackStatusPaid, resp.Items[0].FeedbackStatus)
	s.Equal(types.FeedbackStatusReceived, resp.Items[1].FeedbackStatus)
}

func (s *FeedbackServiceSuite) TestListFeedbackUndispatchedInvoice() {
	now := time.Now().UTC()
	start := types.BeginningOfMonth(now)
	created, err := s.seriesService.CreateSeries(s.GetContext(), dto.CreateSeriesRequest{
		CaseReference: "CASE-FEEDBACK-2",
		SubjectID:     "12345678901",
		Interval:      types.BillingIntervalMonthly,
		StartDate:     start,
		EndDate:       types.EndOfMonth(now),
		SubPeriods: []dto.SubPeriodRequest{
			{
				StartDate:    start,
				EndDate:      types.EndOfMonth(now),
				MonthlyPrice: decimal.NewFromInt(500),
			},
		},
	})
	s.Require().NoError(err)

	resp, err := s.feedbackService.ListFeedback(s.GetContext(), created.Invoices[0].Reference)
	s.NoError(err)
	s.Equal(0, resp.Total)
	s.Empty(resp.Items)
}
