package service

import (
	"testing"
	"time"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	"github.com/invopeak/fakturaserie/internal/cache"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/publisher"
	"github.com/invopeak/fakturaserie/internal/testutil"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SeriesServiceSuite struct {
	testutil.BaseServiceTestSuite
	seriesService SeriesService
}

func TestSeriesService(t *testing.T) {
	suite.Run(t, new(SeriesServiceSuite))
}

func (s *SeriesServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.seriesService = NewSeriesService(s.newParams())
}

func (s *SeriesServiceSuite) newParams() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
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
}

func (s *SeriesServiceSuite) newRequest() dto.CreateSeriesRequest {
	return dto.CreateSeriesRequest{
		CaseReference:  "CASE-2024-001",
		SubjectID:      "12345678901",
		BuyerReference: "BUYER-1",
		Interval:       types.BillingIntervalMonthly,
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		SubPeriods: []dto.SubPeriodRequest{
			{
				StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				EndDate:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
				MonthlyPrice: decimal.NewFromInt(1000),
				Description:  "Advance payment",
			},
		},
	}
}

func (s *SeriesServiceSuite) TestCreateSeries() {
	resp, err := s.seriesService.CreateSeries(s.GetContext(), s.newRequest())
	s.NoError(err)
	s.NotNil(resp)
	s.Equal(types.SeriesStatusActive, resp.SeriesStatus)
	s.Contains(resp.Reference, types.UUID_PREFIX_SERIES+"_")

	s.Len(resp.Invoices, 3)
	for _, inv := range resp.Invoices {
		s.Equal(types.InvoiceStatusDraft, inv.InvoiceStatus)
		s.True(inv.TotalAmount.Equal(decimal.NewFromInt(1000)))
		s.Len(inv.Lines, 1)
	}

	s.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), resp.Invoices[0].ScheduledSendDate)
	s.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), resp.Invoices[1].ScheduledSendDate)
	s.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), resp.Invoices[2].ScheduledSendDate)

	s.True(s.GetEventPublisher().HasEvent(publisher.EventSeriesCreated, resp.Reference))
}

func (s *SeriesServiceSuite) TestCreateSeriesQuarterly() {
	req := s.newRequest()
	req.Interval = types.BillingIntervalQuarterly

	resp, err := s.seriesService.CreateSeries(s.GetContext(), req)
	s.NoError(err)
	s.Len(resp.Invoices, 1)
	s.True(resp.Invoices[0].TotalAmount.Equal(decimal.NewFromInt(3000)))
}

func (s *SeriesServiceSuite) TestCreateSeriesPartialMonth() {
	req := s.newRequest()
	req.StartDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	req.EndDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	req.SubPeriods[0].StartDate = req.StartDate
	req.SubPeriods[0].EndDate = req.EndDate
	req.SubPeriods[0].MonthlyPrice = decimal.NewFromInt(3100)

	resp, err := s.seriesService.CreateSeries(s.GetContext(), req)
	s.NoError(err)
	s.Len(resp.Invoices, 1)
	// 17 of 31 days at 3100 a month
	s.True(resp.Invoices[0].TotalAmount.Equal(decimal.NewFromInt(1700)),
		"got %s", resp.Invoices[0].TotalAmount)
}

func (s *SeriesServiceSuite) TestCreateSeriesSendDateOffset() {
	s.GetConfig().Scheduler.SendDateOffsetDays = -5
	defer func() { s.GetConfig().Scheduler.SendDateOffsetDays = 0 }()

	resp, err := s.seriesService.CreateSeries(s.GetContext(), s.newRequest())
	s.NoError(err)
	s.Equal(time.Date(2023, 12, 27, 0, 0, 0, 0, time.UTC), resp.Invoices[0].ScheduledSendDate)
}

func (s *SeriesServiceSuite) TestCreateSeriesDuplicateCase() {
	_, err := s.seriesService.CreateSeries(s.GetContext(), s.newRequest())
	s.NoError(err)

	_, err = s.seriesService.CreateSeries(s.GetContext(), s.newRequest())
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SeriesServiceSuite) TestStoreRejectsSecondActiveSeriesForCase() {
	// the store itself enforces one active series per case, so two creates
	// racing past the duplicate pre-check cannot both commit
	firstReq := s.newRequest()
	first := firstReq.ToSeries(s.GetContext())
	s.NoError(s.GetStores().SeriesRepo.Create(s.GetContext(), first))

	secondReq := s.newRequest()
	second := secondReq.ToSeries(s.GetContext())
	err := s.GetStores().SeriesRepo.Create(s.GetContext(), second)
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))

	// a terminal series frees the case reference
	first.SeriesStatus = types.SeriesStatusFinished
	s.NoError(s.GetStores().SeriesRepo.Update(s.GetContext(), first))
	s.NoError(s.GetStores().SeriesRepo.Create(s.GetContext(), second))
}

func (s *SeriesServiceSuite) TestCreateSeriesValidationFailures() {
	testCases := []struct {
		name   string
		mutate func(req *dto.CreateSeriesRequest)
	}{
		{
			name:   "missing_case_reference",
			mutate: func(req *dto.CreateSeriesRequest) { req.CaseReference = "" },
		},
		{
			name:   "missing_subject",
			mutate: func(req *dto.CreateSeriesRequest) { req.SubjectID = "" },
		},
		{
			name:   "invalid_interval",
			mutate: func(req *dto.CreateSeriesRequest) { req.Interval = "WEEKLY" },
		},
		{
			name:   "end_before_start",
			mutate: func(req *dto.CreateSeriesRequest) { req.EndDate = req.StartDate.AddDate(0, -6, 0) },
		},
		{
			name:   "no_sub_periods",
			mutate: func(req *dto.CreateSeriesRequest) { req.SubPeriods = nil },
		},
		{
			name: "sub_period_outside_range",
			mutate: func(req *dto.CreateSeriesRequest) {
				req.SubPeriods[0].EndDate = req.EndDate.AddDate(0, 1, 0)
			},
		},
		{
			name: "overlapping_sub_periods",
			mutate: func(req *dto.CreateSeriesRequest) {
				req.SubPeriods = append(req.SubPeriods, req.SubPeriods[0])
			},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			req := s.newRequest()
			req.CaseReference = "CASE-" + tc.name
			tc.mutate(&req)

			_, err := s.seriesService.CreateSeries(s.GetContext(), req)
			s.Error(err)
			s.True(ierr.IsValidation(err))
		})
	}
}

func (s *SeriesServiceSuite) TestGetSeries() {
	created, err := s.seriesService.CreateSeries(s.GetContext(), s.newRequest())
	s.NoError(err)

	resp, err := s.seriesService.GetSeries(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Equal(created.Reference, resp.Reference)
	s.Len(resp.Invoices, 3)

	// second read is served from cache
	resp, err = s.seriesService.GetSeries(s.GetContext(), created.Reference)
	s.NoError(err)
	s.Equal(created.Reference, resp.Reference)
}

func (s *SeriesServiceSuite) TestGetSeriesNotFound() {
	_, err := s.seriesService.GetSeries(s.GetContext(), "fs_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SeriesServiceSuite) TestListSeries() {
	_, err := s.seriesService.CreateSeries(s.GetContext(), s.newRequest())
	s.NoError(err)

	other := s.newRequest()
	other.CaseReference = "CASE-2024-002"
	_, err = s.seriesService.CreateSeries(s.GetContext(), other)
	s.NoError(err)

	all, err := s.seriesService.ListSeries(s.GetContext(), nil)
	s.NoError(err)
	s.Len(all, 2)

	filtered, err := s.seriesService.ListSeries(s.GetContext(), &series.Filter{
		CaseReference: "CASE-2024-002",
	})
	s.NoError(err)
	s.Len(filtered, 1)
	s.Equal("CASE-2024-002", filtered[0].CaseReference)
}
