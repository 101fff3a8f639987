package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/invoice"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/postgres"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type invoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewInvoiceRepository creates a postgres-backed invoice repository
func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{client: client, logger: logger}
}

type invoiceRow struct {
	Reference         string          `db:"reference"`
	SeriesReference   string          `db:"series_reference"`
	Status            string          `db:"status"`
	TotalAmount       decimal.Decimal `db:"total_amount"`
	ScheduledSendDate time.Time       `db:"scheduled_send_date"`
	Description       string          `db:"description"`
	ExternalOrderRef  sql.NullString  `db:"external_order_ref"`
	ExternalCreditRef sql.NullString  `db:"external_credit_ref"`
	CreditOf          sql.NullString  `db:"credit_of"`
	SentAt            sql.NullTime    `db:"sent_at"`
	PaidAt            sql.NullTime    `db:"paid_at"`
	ErrorMessage      sql.NullString  `db:"error_message"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
	CreatedBy         string          `db:"created_by"`
	UpdatedBy         string          `db:"updated_by"`
}

type invoiceLineRow struct {
	ID               string          `db:"id"`
	InvoiceReference string          `db:"invoice_reference"`
	PeriodFrom       time.Time       `db:"period_from"`
	PeriodTo         time.Time       `db:"period_to"`
	Description      string          `db:"description"`
	MonthlyPrice     decimal.Decimal `db:"monthly_price"`
	Amount           decimal.Decimal `db:"amount"`
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	q := r.client.Querier(ctx)

	row := toInvoiceRow(inv)
	_, err := q.NamedExecContext(ctx, `
		INSERT INTO invoices (
			reference, series_reference, status, total_amount, scheduled_send_date,
			description, external_order_ref, external_credit_ref, credit_of,
			sent_at, paid_at, error_message, created_at, updated_at, created_by, updated_by
		) VALUES (
			:reference, :series_reference, :status, :total_amount, :scheduled_send_date,
			:description, :external_order_ref, :external_credit_ref, :credit_of,
			:sent_at, :paid_at, :error_message, :created_at, :updated_at, :created_by, :updated_by
		)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("invoice %s already exists", inv.Reference).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("failed to create invoice").
			Mark(ierr.ErrDatabase)
	}

	for _, line := range inv.Lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO invoice_lines (id, invoice_reference, period_from, period_to, description, monthly_price, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			line.ID, inv.Reference, line.PeriodFrom, line.PeriodTo, line.Description, line.MonthlyPrice, line.Amount)
		if err != nil {
			return ierr.WithError(err).
				WithHint("failed to create invoice line").
				Mark(ierr.ErrDatabase)
		}
	}

	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, reference string) (*invoice.Invoice, error) {
	return r.getOne(ctx, `SELECT * FROM invoices WHERE reference = $1`, reference)
}

func (r *invoiceRepository) GetByExternalOrderRef(ctx context.Context, externalRef string) (*invoice.Invoice, error) {
	return r.getOne(ctx, `SELECT * FROM invoices WHERE external_order_ref = $1`, externalRef)
}

func (r *invoiceRepository) getOne(ctx context.Context, query string, arg interface{}) (*invoice.Invoice, error) {
	q := r.client.Querier(ctx)

	var row invoiceRow
	err := q.GetContext(ctx, &row, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("invoice not found").
				WithHintf("no invoice for %v", arg).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("failed to get invoice").
			Mark(ierr.ErrDatabase)
	}

	inv := fromInvoiceRow(&row)
	if err := r.loadLines(ctx, []*invoice.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) ListBySeries(ctx context.Context, seriesReference string) ([]*invoice.Invoice, error) {
	q := r.client.Querier(ctx)

	var rows []invoiceRow
	err := q.SelectContext(ctx, &rows, `
		SELECT * FROM invoices
		WHERE series_reference = $1
		ORDER BY scheduled_send_date, reference`, seriesReference)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to list invoices").
			Mark(ierr.ErrDatabase)
	}

	return r.collect(ctx, rows)
}

func (r *invoiceRepository) ListDue(ctx context.Context, now time.Time, limit int, credits bool) ([]*invoice.Invoice, error) {
	q := r.client.Querier(ctx)

	creditClause := `credit_of IS NULL`
	if credits {
		creditClause = `credit_of IS NOT NULL`
	}

	var rows []invoiceRow
	err := q.SelectContext(ctx, &rows, `
		SELECT * FROM invoices
		WHERE status = $1 AND scheduled_send_date <= $2 AND `+creditClause+`
		ORDER BY scheduled_send_date, reference
		LIMIT $3`,
		types.InvoiceStatusDraft.String(), types.DateOnly(now), limit)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to list due invoices").
			Mark(ierr.ErrDatabase)
	}

	return r.collect(ctx, rows)
}

func (r *invoiceRepository) MarkDispatched(ctx context.Context, reference string, status types.InvoiceStatus, externalRef string, sentAt time.Time) error {
	q := r.client.Querier(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE invoices
		SET status = $2, external_order_ref = $3, sent_at = $4, updated_at = $5
		WHERE reference = $1 AND status = $6`,
		reference, status.String(), externalRef, sentAt, time.Now().UTC(),
		types.InvoiceStatusDraft.String())
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to mark invoice dispatched").
			Mark(ierr.ErrDatabase)
	}

	return r.requireConditionalWrite(ctx, res, reference, "invoice is not in draft")
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, reference string, from, to types.InvoiceStatus, paidAt *time.Time, errorMessage *string) error {
	q := r.client.Querier(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE invoices
		SET status = $2,
			paid_at = COALESCE($3, paid_at),
			error_message = COALESCE($4, error_message),
			updated_at = $5
		WHERE reference = $1 AND status = $6`,
		reference, to.String(), paidAt, errorMessage, time.Now().UTC(), from.String())
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to update invoice status").
			Mark(ierr.ErrDatabase)
	}

	return r.requireConditionalWrite(ctx, res, reference, "invoice status changed concurrently")
}

func (r *invoiceRepository) CancelDraft(ctx context.Context, reference string) error {
	q := r.client.Querier(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE invoices
		SET status = $2, updated_at = $3
		WHERE reference = $1 AND status = $4`,
		reference, types.InvoiceStatusCancelled.String(), time.Now().UTC(),
		types.InvoiceStatusDraft.String())
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to cancel invoice").
			Mark(ierr.ErrDatabase)
	}

	return r.requireConditionalWrite(ctx, res, reference, "invoice is not in draft")
}

func (r *invoiceRepository) RecordCreditRef(ctx context.Context, reference string, creditRef string) error {
	q := r.client.Querier(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE invoices
		SET external_credit_ref = $2, updated_at = $3
		WHERE reference = $1 AND external_credit_ref IS NULL`,
		reference, creditRef, time.Now().UTC())
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to record credit reference").
			Mark(ierr.ErrDatabase)
	}

	return r.requireConditionalWrite(ctx, res, reference, "invoice already credited")
}

// requireConditionalWrite distinguishes a missing invoice from a failed
// write condition when an update touched no rows
func (r *invoiceRepository) requireConditionalWrite(ctx context.Context, res sql.Result, reference, hint string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.Get(ctx, reference); err != nil {
		return err
	}

	return ierr.NewError("conditional write failed").
		WithHintf("%s: %s", hint, reference).
		Mark(ierr.ErrInvalidOperation)
}

func (r *invoiceRepository) collect(ctx context.Context, rows []invoiceRow) ([]*invoice.Invoice, error) {
	result := lo.Map(rows, func(row invoiceRow, _ int) *invoice.Invoice {
		return fromInvoiceRow(&row)
	})
	if err := r.loadLines(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *invoiceRepository) loadLines(ctx context.Context, invoices []*invoice.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	q := r.client.Querier(ctx)

	refs := lo.Map(invoices, func(inv *invoice.Invoice, _ int) string { return inv.Reference })

	var rows []invoiceLineRow
	err := q.SelectContext(ctx, &rows, `
		SELECT * FROM invoice_lines
		WHERE invoice_reference = ANY($1)
		ORDER BY period_from`, pq.Array(refs))
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to load invoice lines").
			Mark(ierr.ErrDatabase)
	}

	byRef := lo.GroupBy(rows, func(row invoiceLineRow) string { return row.InvoiceReference })
	for _, inv := range invoices {
		inv.Lines = lo.Map(byRef[inv.Reference], func(row invoiceLineRow, _ int) *invoice.Line {
			return &invoice.Line{
				ID:           row.ID,
				PeriodFrom:   row.PeriodFrom.UTC(),
				PeriodTo:     row.PeriodTo.UTC(),
				Description:  row.Description,
				MonthlyPrice: row.MonthlyPrice,
				Amount:       row.Amount,
			}
		})
	}
	return nil
}

func toInvoiceRow(inv *invoice.Invoice) *invoiceRow {
	return &invoiceRow{
		Reference:         inv.Reference,
		SeriesReference:   inv.SeriesReference,
		Status:            inv.InvoiceStatus.String(),
		TotalAmount:       inv.TotalAmount,
		ScheduledSendDate: inv.ScheduledSendDate,
		Description:       inv.Description,
		ExternalOrderRef:  toNullString(inv.ExternalOrderRef),
		ExternalCreditRef: toNullString(inv.ExternalCreditRef),
		CreditOf:          toNullString(inv.CreditOf),
		SentAt:            toNullTime(inv.SentAt),
		PaidAt:            toNullTime(inv.PaidAt),
		ErrorMessage:      toNullString(inv.ErrorMessage),
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
		CreatedBy:         inv.CreatedBy,
		UpdatedBy:         inv.UpdatedBy,
	}
}

func fromInvoiceRow(row *invoiceRow) *invoice.Invoice {
	return &invoice.Invoice{
		Reference:         row.Reference,
		SeriesReference:   row.SeriesReference,
		InvoiceStatus:     types.InvoiceStatus(row.Status),
		TotalAmount:       row.TotalAmount,
		ScheduledSendDate: row.ScheduledSendDate.UTC(),
		Description:       row.Description,
		ExternalOrderRef:  fromNullString(row.ExternalOrderRef),
		ExternalCreditRef: fromNullString(row.ExternalCreditRef),
		CreditOf:          fromNullString(row.CreditOf),
		SentAt:            fromNullTime(row.SentAt),
		PaidAt:            fromNullTime(row.PaidAt),
		ErrorMessage:      fromNullString(row.ErrorMessage),
		BaseModel: types.BaseModel{
			CreatedAt: row.CreatedAt.UTC(),
			UpdatedAt: row.UpdatedAt.UTC(),
			CreatedBy: row.CreatedBy,
			UpdatedBy: row.UpdatedBy,
		},
	}
}
