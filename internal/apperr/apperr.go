// Package apperr classifies failures so the HTTP layer can map them to
// status codes without inspecting messages.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Unexpected Kind = iota
	Validation
	NotFound
	MalformedTime
	Encoding
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case MalformedTime:
		return "malformed_time"
	case Encoding:
		return "encoding"
	default:
		return "unexpected"
	}
}

// HTTPStatus is the response code used for errors of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a user-facing Message and an optional internal cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// kinded is implemented by domain errors that live outside this package.
type kinded interface {
	Kind() Kind
}

// KindOf reports the first classification found in err's chain.
// Unclassified errors are Unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return Unexpected
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Unexpected
}

// PublicMessage returns text that is safe to show to a caller. Unexpected
// errors never expose their detail.
func PublicMessage(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != Unexpected && ae.Message != "" {
		return ae.Message
	}
	if KindOf(err) != Unexpected {
		return err.Error()
	}
	return fallback
}
