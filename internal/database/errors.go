package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	CodePoolUnavailable     = "E_POOL_UNAVAILABLE"
	CodeConnFailed          = "E_CONN_FAILED"
	CodeConstraintViolation = "E_CONSTRAINT_VIOLATION"
	CodeSchemaMismatch      = "E_SCHEMA_MISMATCH"
	CodeRetriesExhausted    = "E_RETRIES_EXHAUSTED"
	CodeQueryFailed         = "E_QUERY_FAILED"
)

// Error wraps sink-level failures with retryability hints.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error         { return e.Err }
func (e *Error) CodeValue() string     { return e.Code }
func (e *Error) RetryableStatus() bool { return e.Retryable }

func wrapError(code string, retryable bool, err error) *Error {
	if err == nil {
		return &Error{Code: code, Retryable: retryable}
	}
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err represents a transient failure worth
// retrying (connection-level trouble), as opposed to a structural one
// (constraint violations, schema mismatches) that retrying cannot fix.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return Classify(err).Retryable
}

// Classify maps a raw driver error onto the sink error taxonomy.
// SQLSTATE classes 08 (connection), 53 (resources), 57 (operator
// intervention) and the serialization/deadlock codes are transient;
// 23 (integrity) is a constraint violation and 42 (syntax/undefined
// object) a schema mismatch, both structural.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		class := ""
		if len(pgErr.Code) >= 2 {
			class = pgErr.Code[:2]
		}
		switch {
		case class == "08" || class == "53" || class == "57":
			return wrapError(CodeConnFailed, true, err)
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return wrapError(CodeQueryFailed, true, err)
		case class == "23":
			return wrapError(CodeConstraintViolation, false, err)
		case class == "42":
			return wrapError(CodeSchemaMismatch, false, err)
		}
		return wrapError(CodeQueryFailed, false, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrapError(CodeConnFailed, true, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(CodeConnFailed, true, err)
	}
	// pgconn surfaces dial failures as plain wrapped errors.
	if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset") {
		return wrapError(CodeConnFailed, true, err)
	}
	return wrapError(CodeQueryFailed, false, err)
}
