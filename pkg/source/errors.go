package source

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	sf "github.com/snowflakedb/gosnowflake"
)

// ErrorCategory classifies load errors to decide between retrying and aborting
type ErrorCategory int

const (
	// Error categories with increasing severity
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryDataConversion
	ErrorCategoryTableLevel
	ErrorCategoryConnectionLevel
	ErrorCategorySystemLevel
	ErrorCategoryCritical
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryDataConversion:
		return "DataConversion"
	case ErrorCategoryTableLevel:
		return "TableLevel"
	case ErrorCategoryConnectionLevel:
		return "ConnectionLevel"
	case ErrorCategorySystemLevel:
		return "SystemLevel"
	case ErrorCategoryCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// CategorizeError determines the category of an error. Driver error codes are
// consulted first; the message is only a fallback.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return categorizeSQLState(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return categorizeSQLState(string(pqErr.Code))
	}

	var sfErr *sf.SnowflakeError
	if errors.As(err, &sfErr) && sfErr.SQLState != "" {
		return categorizeSQLState(sfErr.SQLState)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return ErrorCategoryConnectionLevel
	case errors.Is(err, context.Canceled):
		return ErrorCategoryCritical
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "try again"):
		return ErrorCategoryConnectionLevel
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "no such column"),
		strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "not found"):
		return ErrorCategoryTableLevel
	case strings.Contains(msg, "converting"),
		strings.Contains(msg, "parse"):
		return ErrorCategoryDataConversion
	case strings.Contains(msg, "permission"),
		strings.Contains(msg, "access denied"),
		strings.Contains(msg, "disk"):
		return ErrorCategorySystemLevel
	default:
		return ErrorCategoryCritical
	}
}

// categorizeSQLState maps a SQLSTATE code to a category
func categorizeSQLState(code string) ErrorCategory {
	switch {
	case strings.HasPrefix(code, "08"), // connection exception
		code == "57P01", code == "57P02", code == "57P03", // shutdown / cannot connect now
		code == "53300",                  // too many connections
		code == "40001", code == "40P01": // serialization failure, deadlock
		return ErrorCategoryConnectionLevel
	case code == "42P01", code == "42703", code == "3F000": // undefined table / column / schema
		return ErrorCategoryTableLevel
	case strings.HasPrefix(code, "22"): // data exception
		return ErrorCategoryDataConversion
	case code == "42501", strings.HasPrefix(code, "28"), strings.HasPrefix(code, "53"):
		return ErrorCategorySystemLevel
	default:
		return ErrorCategoryCritical
	}
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	return CategorizeError(err) == ErrorCategoryConnectionLevel
}
