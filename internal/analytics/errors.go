package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// QueryError reports a failed store round trip for one operation.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("analytics: %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the statement was cancelled by statement_timeout or
// by the caller's deadline.
func (e *QueryError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) || pgconn.Timeout(e.Err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgErr.Code == "57014"
	}
	return false
}

func wrapQuery(op string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Op: op, Err: err}
}
