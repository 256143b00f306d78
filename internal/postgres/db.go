// Package postgres implements the store contracts on PostgreSQL via pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/agrimart/internal/domain"
)

// PostgreSQL error codes the stores branch on.
const (
	codeUniqueViolation     = "23505"
	codeInvalidTextRepr     = "22P02"
	codeForeignKeyViolation = "23503"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB owns the connection pool and implements every store contract.
type DB struct {
	pool *pgxpool.Pool
}

// Open connects to url and verifies the connection.
func Open(ctx context.Context, url string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// SQLDB exposes the pool through database/sql for goose migrations.
// Closing the returned handle does not close the pool.
func (db *DB) SQLDB() *sql.DB {
	return stdlib.OpenDBFromPool(db.pool)
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases every connection.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// inTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (db *DB) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.inTxWith(ctx, pgx.TxOptions{}, fn)
}

// readSnapshot runs fn in a read-only REPEATABLE READ transaction so every
// statement sees the same snapshot.
func (db *DB) readSnapshot(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.inTxWith(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (db *DB) inTxWith(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// storeErr classifies driver errors. Connection failures and timeouts are
// EUNAVAILABLE so callers may fall back or retry.
func storeErr(err error, op, message string) error {
	if err == nil {
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) || domain.IsValidationError(err) {
		return err
	}
	if domain.IsStockConflict(err) {
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.As(err, &netErr) {
		return domain.Unavailable(err, op, "database unavailable")
	}
	return domain.StoreError(err, op, message)
}

// pgCode returns the SQLSTATE of err, or "".
func pgCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// validID reports whether id can be compared against a UUID column. Other
// strings can never match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
