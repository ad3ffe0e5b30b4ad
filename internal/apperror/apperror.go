// Package apperror distinguishes operational errors (expected,
// client-attributable, safe to describe in a response) from unknown
// failures, which are only ever surfaced as a generic 500.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

func Internal(message string) *Error {
	return New(http.StatusInternalServerError, message)
}

// AsError returns the operational error inside err, if any.
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromStore translates known document-store failures into operational
// errors. Anything unrecognized passes through unchanged and stays in
// the unknown category.
func FromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return Wrap(http.StatusNotFound, "No document found with that ID", err)
	case mongo.IsDuplicateKeyError(err):
		return Wrap(http.StatusConflict, "Duplicate field value. Please use another value", err)
	default:
		return err
	}
}

// FromToken translates token verification failures. Expired and malformed
// tokens differ only in message; both deny access.
func FromToken(err error) *Error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Wrap(http.StatusUnauthorized, "Your token has expired. Please log in again", err)
	}
	return Wrap(http.StatusUnauthorized, "Invalid token. Please log in again", err)
}
