package service

import (
	"github.com/invopeak/fakturaserie/internal/cache"
	"github.com/invopeak/fakturaserie/internal/config"
	"github.com/invopeak/fakturaserie/internal/domain/feedback"
	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	"github.com/invopeak/fakturaserie/internal/domain/lease"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/postgres"
	"github.com/invopeak/fakturaserie/internal/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	// Repositories
	SeriesRepo   series.Repository
	InvoiceRepo  invoice.Repository
	FeedbackRepo feedback.Repository
	LeaseRepo    lease.Repository

	// Publishers
	OrderPublisher publisher.OrderPublisher
	EventPublisher publisher.EventPublisher
}
