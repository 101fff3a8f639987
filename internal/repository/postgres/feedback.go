package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/feedback"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/postgres"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type feedbackRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewFeedbackRepository creates a postgres-backed feedback repository
func NewFeedbackRepository(client postgres.IClient, logger *logger.Logger) feedback.Repository {
	return &feedbackRepository{client: client, logger: logger}
}

type feedbackRow struct {
	ID                    string          `db:"id"`
	ExternalOrderRef      string          `db:"external_order_ref"`
	ExternalInvoiceNumber string          `db:"external_invoice_number"`
	ReportDate            time.Time       `db:"report_date"`
	Status                string          `db:"status"`
	BilledAmount          decimal.Decimal `db:"billed_amount"`
	UnpaidAmount          decimal.Decimal `db:"unpaid_amount"`
	ErrorText             sql.NullString  `db:"error_text"`
	CreatedAt             time.Time       `db:"created_at"`
}

func (r *feedbackRepository) Append(ctx context.Context, f *feedback.Feedback) error {
	q := r.client.Querier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO invoice_feedback (
			id, external_order_ref, external_invoice_number, report_date,
			status, billed_amount, unpaid_amount, error_text, created_at
		) VALUES (
			:id, :external_order_ref, :external_invoice_number, :report_date,
			:status, :billed_amount, :unpaid_amount, :error_text, :created_at
		)`, toFeedbackRow(f))
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to append feedback").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *feedbackRepository) ListByExternalOrderRef(ctx context.Context, externalRef string) ([]*feedback.Feedback, error) {
	q := r.client.Querier(ctx)

	var rows []feedbackRow
	err := q.SelectContext(ctx, &rows, `
		SELECT * FROM invoice_feedback
		WHERE external_order_ref = $1
		ORDER BY report_date DESC, created_at DESC`, externalRef)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to list feedback").
			Mark(ierr.ErrDatabase)
	}

	return lo.Map(rows, func(row feedbackRow, _ int) *feedback.Feedback {
		return fromFeedbackRow(&row)
	}), nil
}

func (r *feedbackRepository) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*feedback.Feedback, error) {
	q := r.client.Querier(ctx)

	// the latest report per external order reference decides eligibility
	var rows []feedbackRow
	err := q.SelectContext(ctx, &rows, `
		SELECT * FROM (
			SELECT DISTINCT ON (external_order_ref) *
			FROM invoice_feedback
			ORDER BY external_order_ref, report_date DESC, created_at DESC
		) latest
		WHERE latest.status = $1
		  AND latest.unpaid_amount > 0
		  AND latest.report_date < $2
		ORDER BY latest.report_date
		LIMIT $3`,
		types.FeedbackStatusUnpaid.String(), cutoff, limit)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to list overdue unpaid feedback").
			Mark(ierr.ErrDatabase)
	}

	return lo.Map(rows, func(row feedbackRow, _ int) *feedback.Feedback {
		return fromFeedbackRow(&row)
	}), nil
}

func toFeedbackRow(f *feedback.Feedback) *feedbackRow {
	return &feedbackRow{
		ID:                    f.ID,
		ExternalOrderRef:      f.ExternalOrderRef,
		ExternalInvoiceNumber: f.ExternalInvoiceNumber,
		ReportDate:            f.ReportDate,
		Status:                f.FeedbackStatus.String(),
		BilledAmount:          f.BilledAmount,
		UnpaidAmount:          f.UnpaidAmount,
		ErrorText:             toNullString(f.ErrorText),
		CreatedAt:             f.CreatedAt,
	}
}

func fromFeedbackRow(row *feedbackRow) *feedback.Feedback {
	return &feedback.Feedback{
		ID:                    row.ID,
		ExternalOrderRef:      row.ExternalOrderRef,
		ExternalInvoiceNumber: row.ExternalInvoiceNumber,
		ReportDate:            row.ReportDate.UTC(),
		FeedbackStatus:        types.FeedbackStatus(row.Status),
		BilledAmount:          row.BilledAmount,
		UnpaidAmount:          row.UnpaidAmount,
		ErrorText:             fromNullString(row.ErrorText),
		CreatedAt:             row.CreatedAt.UTC(),
	}
}
