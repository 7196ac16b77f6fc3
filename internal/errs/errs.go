package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping. Repos and services wrap
// low-level failures into one of these kinds at the boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuthorization
	KindGateway
)

// Error carries a kind, a caller-facing message, and optional field details
// (used for itemized stock/coupon failures).
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string, details ...string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Details: details}
}

func Authorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func Gateway(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// HTTPStatus maps an error to the status code the API returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case KindGateway:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DetailsOf extracts itemized failure details, if any.
func DetailsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
