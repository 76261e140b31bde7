/*
Package apierr defines the failures a request can end with and how each one
maps to an HTTP status. Services return these errors, and the website turns
them into responses in a single place.
*/
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/clynamic/tagem/src/db"
	"github.com/jackc/pgx/v5/pgconn"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindConflict
)

func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindBadRequest:
		return "bad request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// An Error carries a message that is safe to show to the client. The wrapped
// error, if any, is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func newError(kind Kind, wrapped error, format string, args []any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Wrapped: wrapped,
	}
}

func NotFound(format string, args ...any) error {
	return newError(KindNotFound, nil, format, args)
}

// The standard "missing row" error for an entity type.
func NotFoundFor(entity string, id any) error {
	return newError(KindNotFound, db.NotFound, "No %s found for id: %v", []any{entity, id})
}

func BadRequest(wrapped error, format string, args ...any) error {
	return newError(KindBadRequest, wrapped, format, args)
}

func Unauthorized(format string, args ...any) error {
	return newError(KindUnauthorized, nil, format, args)
}

func Forbidden(format string, args ...any) error {
	return newError(KindForbidden, nil, format, args)
}

func Conflict(wrapped error, format string, args ...any) error {
	return newError(KindConflict, wrapped, format, args)
}

// Postgres SQLSTATE codes that are the client's fault.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
	pgStringTooLong       = "22001"
	pgDatatypeMismatch    = "42804"
)

/*
Classify decides which Kind an arbitrary error belongs to, and returns the
message that may be shown for it. Errors that are not recognized are internal,
and their message is replaced with a generic one.
*/
func Classify(err error) (Kind, string) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, apiErr.Message
	}

	if errors.Is(err, db.NotFound) {
		return KindNotFound, "Resource not found"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return KindConflict, describePgError("Duplicate value", pgErr)
		case pgForeignKeyViolation:
			return KindBadRequest, describePgError("Referenced resource does not exist", pgErr)
		case pgNotNullViolation, pgCheckViolation, pgInvalidText, pgStringTooLong, pgDatatypeMismatch:
			return KindBadRequest, describePgError("Invalid value", pgErr)
		}
	}

	return KindInternal, "There was a problem handling your request"
}

func describePgError(prefix string, pgErr *pgconn.PgError) string {
	switch {
	case pgErr.ConstraintName != "":
		return fmt.Sprintf("%s (%s)", prefix, pgErr.ConstraintName)
	case pgErr.ColumnName != "":
		return fmt.Sprintf("%s (%s)", prefix, pgErr.ColumnName)
	default:
		return prefix
	}
}

func Status(err error) int {
	kind, _ := Classify(err)
	return kind.Status()
}

func Is(err error, kind Kind) bool {
	k, _ := Classify(err)
	return k == kind
}
