// Package errs defines the error kinds shared by the price tracker services.
package errs

import (
	"errors"
	"net/http"
	"strings"
)

// Kind identifies a failure category callers branch on.
type Kind string

const (
	// KindNotFoundExternal means the Steam market does not know the item.
	KindNotFoundExternal Kind = "not_found_external"
	// KindNotFoundLocal means the item id is not in the store.
	KindNotFoundLocal Kind = "not_found_local"
	// KindConflict means an item with the same market hash name already exists.
	KindConflict Kind = "conflict"
	// KindFetchFailed means the request to the Steam market could not be completed or decoded.
	KindFetchFailed Kind = "fetch_failed"
	// KindUnauthorized means the caller presented a missing or wrong secret.
	KindUnauthorized Kind = "unauthorized"
	// KindInvalid means the input was rejected, e.g. by item validation.
	KindInvalid Kind = "invalid"
	// KindInternal covers everything else (database faults and the like).
	KindInternal Kind = "internal"
)

// Error carries a kind, a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string

	cause error
}

// New constructs an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: strings.TrimSpace(message)}
}

// Wrap constructs an error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: strings.TrimSpace(message), cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Message returns the human readable message of err, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e != nil && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps a kind to the status code the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFoundExternal, KindNotFoundLocal:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindFetchFailed:
		return http.StatusBadGateway
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
