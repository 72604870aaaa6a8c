package db

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is a transaction on whichever store was active when it began.
// Queries must be built with Builder so placeholders match the store.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Get(ctx context.Context, dst any, query string, args ...any) error
	Select(ctx context.Context, dst any, query string, args ...any) error
	Builder() sq.StatementBuilderType
	Store() State
}

type txn interface {
	Tx
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

type pool interface {
	acquire(ctx context.Context) (conn, error)
	close()
}

type conn interface {
	begin(ctx context.Context) (txn, error)
	release()
}

var (
	dollarBuilder   = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	questionBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
)

type pgxPool struct {
	pool *pgxpool.Pool
}

func (p *pgxPool) acquire(ctx context.Context) (conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if c.Conn().IsClosed() {
		c.Release()
		return nil, errors.New("connection lost")
	}

	return &pgxConn{conn: c}, nil
}

func (p *pgxPool) close() {
	p.pool.Close()
}

type pgxConn struct {
	conn *pgxpool.Conn
}

func (c *pgxConn) begin(ctx context.Context) (txn, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (c *pgxConn) release() {
	c.conn.Release()
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) Get(ctx context.Context, dst any, query string, args ...any) error {
	err := pgxscan.Get(ctx, t.tx, dst, query, args...)
	if pgxscan.NotFound(err) {
		return ErrNoRows
	}
	return err
}

func (t *pgxTx) Select(ctx context.Context, dst any, query string, args ...any) error {
	return pgxscan.Select(ctx, t.tx, dst, query, args...)
}

func (t *pgxTx) Builder() sq.StatementBuilderType { return dollarBuilder }

func (t *pgxTx) Store() State { return StatePrimary }

func (t *pgxTx) commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *pgxTx) rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// sqlConn hands out the single shared fallback handle. Releasing it is a no-op.
type sqlConn struct {
	db *sql.DB
}

func (c *sqlConn) begin(ctx context.Context) (txn, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (c *sqlConn) release() {}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (t *sqlTx) Get(ctx context.Context, dst any, query string, args ...any) error {
	err := sqlscan.Get(ctx, t.tx, dst, query, args...)
	if sqlscan.NotFound(err) {
		return ErrNoRows
	}
	return err
}

func (t *sqlTx) Select(ctx context.Context, dst any, query string, args ...any) error {
	return sqlscan.Select(ctx, t.tx, dst, query, args...)
}

func (t *sqlTx) Builder() sq.StatementBuilderType { return questionBuilder }

func (t *sqlTx) Store() State { return StateFallback }

func (t *sqlTx) commit(context.Context) error { return t.tx.Commit() }

func (t *sqlTx) rollback(context.Context) error { return t.tx.Rollback() }
