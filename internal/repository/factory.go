package repository

import (
	"github.com/invopeak/fakturaserie/internal/domain/feedback"
	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	"github.com/invopeak/fakturaserie/internal/domain/lease"
	"github.com/invopeak/fakturaserie/internal/domain/series"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/postgres"
	postgresRepo "github.com/invopeak/fakturaserie/internal/repository/postgres"
)

func NewSeriesRepository(client postgres.IClient, logger *logger.Logger) series.Repository {
	return postgresRepo.NewSeriesRepository(client, logger)
}

func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(client, logger)
}

func NewFeedbackRepository(client postgres.IClient, logger *logger.Logger) feedback.Repository {
	return postgresRepo.NewFeedbackRepository(client, logger)
}

func NewLeaseRepository(client postgres.IClient, logger *logger.Logger) lease.Repository {
	return postgresRepo.NewLeaseRepository(client, logger)
}
