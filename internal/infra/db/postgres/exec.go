package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/ports/repository"
)

const pgUniqueViolation = "23505"

// executor is what pgx.Tx, *pgxpool.Conn and *pgxpool.Pool have in common.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// executorFor resolves the tx handle a use case passed in. NoTX falls back
// to the pool; anything else that is not a pgx handle is rejected.
func executorFor(pool *pgxpool.Pool, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case pgx.Tx:
		return v, nil
	case *pgxpool.Conn:
		return v, nil
	case *pgxpool.Pool:
		return v, nil
	case nil:
		if pool == nil {
			return nil, domain.ErrInvalidArgument
		}
		return pool, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func execSQL(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgconn.CommandTag, error) {
	ex, err := executorFor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Exec(ctx, q, args...)
}

func pickRow(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgx.Row, error) {
	ex, err := executorFor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryRow(ctx, q, args...), nil
}

func queryRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgx.Rows, error) {
	ex, err := executorFor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, q, args...)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// mapExecErr converts driver errors into domain errors, keeping the cause.
func mapExecErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrAlreadyExists, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
}

// mapScanErr converts row scan errors; no rows becomes domain.ErrNotFound.
func mapScanErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	default:
		return fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
}

func forUpdate(tx repository.Tx) string {
	if _, ok := tx.(pgx.Tx); ok {
		return " FOR UPDATE"
	}
	return ""
}
