package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/invopeak/fakturaserie/internal/domain/series"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/postgres"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type seriesRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewSeriesRepository creates a postgres-backed series repository
func NewSeriesRepository(client postgres.IClient, logger *logger.Logger) series.Repository {
	return &seriesRepository{client: client, logger: logger}
}

type seriesRow struct {
	Reference           string         `db:"reference"`
	SubjectID           string         `db:"subject_id"`
	RepresentativeOrgNo sql.NullString `db:"representative_org_no"`
	RepresentativeName  sql.NullString `db:"representative_name"`
	BuyerReference      string         `db:"buyer_reference"`
	CaseReference       string         `db:"case_reference"`
	Interval            string         `db:"interval"`
	StartDate           time.Time      `db:"start_date"`
	EndDate             time.Time      `db:"end_date"`
	Status              string         `db:"status"`
	ReplacedBy          sql.NullString `db:"replaced_by"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
	CreatedBy           string         `db:"created_by"`
	UpdatedBy           string         `db:"updated_by"`
}

type subPeriodRow struct {
	ID              string          `db:"id"`
	SeriesReference string          `db:"series_reference"`
	StartDate       time.Time       `db:"start_date"`
	EndDate         time.Time       `db:"end_date"`
	MonthlyPrice    decimal.Decimal `db:"monthly_price"`
	Description     string          `db:"description"`
}

func (r *seriesRepository) Create(ctx context.Context, s *series.Series) error {
	q := r.client.Querier(ctx)

	row := toSeriesRow(s)
	_, err := q.NamedExecContext(ctx, `
		INSERT INTO invoice_series (
			reference, subject_id, representative_org_no, representative_name,
			buyer_reference, case_reference, interval, start_date, end_date,
			status, replaced_by, created_at, updated_at, created_by, updated_by
		) VALUES (
			:reference, :subject_id, :representative_org_no, :representative_name,
			:buyer_reference, :case_reference, :interval, :start_date, :end_date,
			:status, :replaced_by, :created_at, :updated_at, :created_by, :updated_by
		)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == "uq_invoice_series_active_case" {
				return ierr.WithError(err).
					WithHintf("an active series already exists for case reference %s", s.CaseReference).
					Mark(ierr.ErrAlreadyExists)
			}
			return ierr.WithError(err).
				WithHintf("series %s already exists", s.Reference).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("failed to create series").
			Mark(ierr.ErrDatabase)
	}

	for _, p := range s.SubPeriods {
		_, err := q.ExecContext(ctx, `
			INSERT INTO sub_periods (id, series_reference, start_date, end_date, monthly_price, description)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, s.Reference, p.StartDate, p.EndDate, p.MonthlyPrice, p.Description)
		if err != nil {
			return ierr.WithError(err).
				WithHint("failed to create sub-period").
				Mark(ierr.ErrDatabase)
		}
	}

	return nil
}

func (r *seriesRepository) Get(ctx context.Context, reference string) (*series.Series, error) {
	q := r.client.Querier(ctx)

	var row seriesRow
	err := q.GetContext(ctx, &row, `
		SELECT * FROM invoice_series WHERE reference = $1`, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("series not found").
				WithHintf("series %s was not found", reference).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("failed to get series").
			Mark(ierr.ErrDatabase)
	}

	s := fromSeriesRow(&row)
	if err := r.loadSubPeriods(ctx, []*series.Series{s}); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *seriesRepository) List(ctx context.Context, filter *series.Filter) ([]*series.Series, error) {
	q := r.client.Querier(ctx)
	if filter == nil {
		filter = &series.Filter{}
	}

	query := `SELECT * FROM invoice_series WHERE 1=1`
	args := []interface{}{}

	if filter.CaseReference != "" {
		args = append(args, filter.CaseReference)
		query += ` AND case_reference = $` + itoa(len(args))
	}
	if len(filter.SeriesStatus) > 0 {
		statuses := lo.Map(filter.SeriesStatus, func(st types.SeriesStatus, _ int) string {
			return st.String()
		})
		args = append(args, pq.Array(statuses))
		query += ` AND status = ANY($` + itoa(len(args)) + `)`
	}

	query += ` ORDER BY created_at DESC, reference`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}

	var rows []seriesRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to list series").
			Mark(ierr.ErrDatabase)
	}

	result := lo.Map(rows, func(row seriesRow, _ int) *series.Series {
		return fromSeriesRow(&row)
	})
	if err := r.loadSubPeriods(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *seriesRepository) Update(ctx context.Context, s *series.Series) error {
	q := r.client.Querier(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE invoice_series
		SET status = $2, replaced_by = $3, updated_at = $4, updated_by = $5
		WHERE reference = $1`,
		s.Reference, s.SeriesStatus.String(), s.ReplacedBy, s.UpdatedAt, s.UpdatedBy)
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to update series").
			Mark(ierr.ErrDatabase)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		return ierr.NewError("series not found").
			WithHintf("series %s was not found", s.Reference).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *seriesRepository) ExistsActiveForCase(ctx context.Context, caseReference string) (bool, error) {
	q := r.client.Querier(ctx)

	var exists bool
	err := q.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM invoice_series
			WHERE case_reference = $1 AND status = $2
		)`, caseReference, types.SeriesStatusActive.String())
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("failed to check for active series").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}

func (r *seriesRepository) loadSubPeriods(ctx context.Context, items []*series.Series) error {
	if len(items) == 0 {
		return nil
	}
	q := r.client.Querier(ctx)

	refs := lo.Map(items, func(s *series.Series, _ int) string { return s.Reference })

	var rows []subPeriodRow
	err := q.SelectContext(ctx, &rows, `
		SELECT * FROM sub_periods
		WHERE series_reference = ANY($1)
		ORDER BY start_date`, pq.Array(refs))
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to load sub-periods").
			Mark(ierr.ErrDatabase)
	}

	byRef := lo.GroupBy(rows, func(row subPeriodRow) string { return row.SeriesReference })
	for _, s := range items {
		s.SubPeriods = lo.Map(byRef[s.Reference], func(row subPeriodRow, _ int) series.SubPeriod {
			return series.SubPeriod{
				ID:           row.ID,
				StartDate:    row.StartDate.UTC(),
				EndDate:      row.EndDate.UTC(),
				MonthlyPrice: row.MonthlyPrice,
				Description:  row.Description,
			}
		})
	}
	return nil
}

func toSeriesRow(s *series.Series) *seriesRow {
	row := &seriesRow{
		Reference:      s.Reference,
		SubjectID:      s.SubjectID,
		BuyerReference: s.BuyerReference,
		CaseReference:  s.CaseReference,
		Interval:       s.Interval.String(),
		StartDate:      s.StartDate,
		EndDate:        s.EndDate,
		Status:         s.SeriesStatus.String(),
		ReplacedBy:     toNullString(s.ReplacedBy),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		CreatedBy:      s.CreatedBy,
		UpdatedBy:      s.UpdatedBy,
	}

	if s.Representative != nil {
		row.RepresentativeOrgNo = sql.NullString{String: s.Representative.OrganizationNumber, Valid: true}
		row.RepresentativeName = sql.NullString{String: s.Representative.Name, Valid: true}
	}
	return row
}

func fromSeriesRow(row *seriesRow) *series.Series {
	s := &series.Series{
		Reference:      row.Reference,
		SubjectID:      row.SubjectID,
		BuyerReference: row.BuyerReference,
		CaseReference:  row.CaseReference,
		Interval:       types.BillingInterval(row.Interval),
		StartDate:      row.StartDate.UTC(),
		EndDate:        row.EndDate.UTC(),
		SeriesStatus:   types.SeriesStatus(row.Status),
		ReplacedBy:     fromNullString(row.ReplacedBy),
		BaseModel: types.BaseModel{
			CreatedAt: row.CreatedAt.UTC(),
			UpdatedAt: row.UpdatedAt.UTC(),
			CreatedBy: row.CreatedBy,
			UpdatedBy: row.UpdatedBy,
		},
	}

	if row.RepresentativeOrgNo.Valid || row.RepresentativeName.Valid {
		s.Representative = &series.Representative{
			OrganizationNumber: row.RepresentativeOrgNo.String,
			Name:               row.RepresentativeName.String,
		}
	}
	return s
}
