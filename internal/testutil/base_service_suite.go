package testutil

import (
	"context"
	"time"

	"github.com/invopeak/fakturaserie/internal/config"
	"github.com/invopeak/fakturaserie/internal/domain/feedback"
	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	"github.com/invopeak/fakturaserie/internal/domain/lease"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/postgres"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SeriesRepo   series.Repository
	InvoiceRepo  invoice.Repository
	FeedbackRepo feedback.Repository
	LeaseRepo    lease.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx            context.Context
	stores         Stores
	db             postgres.IClient
	logger         *logger.Logger
	config         *config.Configuration
	orderPublisher *InMemoryOrderPublisher
	eventPublisher *InMemoryEventPublisher
	now            time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SeriesRepo:   NewInMemorySeriesStore(),
		InvoiceRepo:  NewInMemoryInvoiceStore(),
		FeedbackRepo: NewInMemoryFeedbackStore(),
		LeaseRepo:    NewInMemoryLeaseStore(),
	}

	s.db = NewMockPostgresClient()
	s.orderPublisher = NewInMemoryOrderPublisher()
	s.eventPublisher = NewInMemoryEventPublisher()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SeriesRepo.(*InMemorySeriesStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.FeedbackRepo.(*InMemoryFeedbackStore).Clear()
	s.stores.LeaseRepo.(*InMemoryLeaseStore).Clear()
	s.orderPublisher.Clear()
	s.eventPublisher.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns the in-memory repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the mock database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetOrderPublisher returns the capturing order publisher
func (s *BaseServiceTestSuite) GetOrderPublisher() *InMemoryOrderPublisher {
	return s.orderPublisher
}

// GetEventPublisher returns the capturing event publisher
func (s *BaseServiceTestSuite) GetEventPublisher() *InMemoryEventPublisher {
	return s.eventPublisher
}

// GetNow returns the test start time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
