package postgres

import (
	"context"
	"database/sql"

	"github.com/invopeak/fakturaserie/internal/config"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/logger"
	"github.com/invopeak/fakturaserie/internal/types"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// IClient is the database access interface used by the repositories. A
// transaction started with WithTx is carried through the context so nested
// repository calls join it transparently.
type IClient interface {
	// Querier returns the transaction bound to ctx, or the base connection
	Querier(ctx context.Context) Querier

	// WithTx runs fn inside a transaction; commit on nil, rollback otherwise
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the underlying connection pool
	Close() error
}

// Querier is the subset of sqlx used by repositories, satisfied by both
// *sqlx.DB and *sqlx.Tx
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

const ctxTransaction types.ContextKey = "ctx_db_transaction"

type client struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewClient opens a connection pool against the configured postgres instance
func NewClient(cfg *config.Configuration, logger *logger.Logger) (IClient, error) {
	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to connect to postgres").
			Mark(ierr.ErrDatabase)
	}

	return &client{db: db, logger: logger}, nil
}

func (c *client) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(ctxTransaction).(*sqlx.Tx); ok {
		return tx
	}
	return c.db
}

func (c *client) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// already inside a transaction, join it
	if _, ok := ctx.Value(ctxTransaction).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}

	txCtx := context.WithValue(ctx, ctxTransaction, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Errorw("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHint("failed to commit transaction").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (c *client) Close() error {
	return c.db.Close()
}
