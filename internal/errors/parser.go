package errors

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind is the coarse class of a persistence error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindDuplicate
	KindForeignKey
	KindNotNull
	KindCheck
	KindPoolExhausted
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindForeignKey:
		return "foreign_key"
	case KindNotNull:
		return "not_null"
	case KindCheck:
		return "check"
	case KindPoolExhausted:
		return "pool_exhausted"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// PostgreSQL SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgTooManyConnections  = "53300"
	pgQueryCanceled       = "57014"
)

// Classify maps a gorm/driver error to a Kind. gorm's translated errors are
// checked first, then the raw PostgreSQL code, then sqlite message text.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return KindDuplicate
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return KindDuplicate
		case pgForeignKeyViolation:
			return KindForeignKey
		case pgNotNullViolation:
			return KindNotNull
		case pgCheckViolation:
			return KindCheck
		case pgTooManyConnections:
			return KindPoolExhausted
		case pgQueryCanceled:
			return KindCanceled
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key"):
		return KindDuplicate
	case strings.Contains(msg, "foreign key constraint"):
		return KindForeignKey
	case strings.Contains(msg, "not null constraint") || strings.Contains(msg, "violates not-null"):
		return KindNotNull
	case strings.Contains(msg, "check constraint"):
		return KindCheck
	}
	return KindUnknown
}

// IsDuplicate reports a unique-key violation.
func IsDuplicate(err error) bool {
	return Classify(err) == KindDuplicate
}

// IsPoolExhausted reports that the server refused a new connection.
func IsPoolExhausted(err error) bool {
	return Classify(err) == KindPoolExhausted
}

// IsForeignKey reports a referential integrity violation.
func IsForeignKey(err error) bool {
	return Classify(err) == KindForeignKey
}
