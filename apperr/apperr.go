// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer. Every error that should reach a client carries a Kind and the
// HTTP status it maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the client.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindValidation  Kind = "validation"
	KindNetwork     Kind = "network"
	KindGeolocation Kind = "geolocation"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindRateLimited Kind = "rate_limited"
)

// Error is a structured, client-facing error.
type Error struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, statusCode int, message string) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Message: message}
}

// Auth covers bad credentials, registration conflicts and expired sessions.
func Auth(message string) *Error {
	return New(KindAuth, http.StatusUnauthorized, message)
}

func Validation(message string) *Error {
	return New(KindValidation, http.StatusBadRequest, message)
}

// Network wraps a failure to reach a backing service.
func Network(message string, err error) *Error {
	e := New(KindNetwork, http.StatusServiceUnavailable, message)
	e.Err = err
	return e
}

func Geolocation(message string) *Error {
	return New(KindGeolocation, http.StatusUnprocessableEntity, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, http.StatusConflict, message)
}

func RateLimited(message string) *Error {
	return New(KindRateLimited, http.StatusTooManyRequests, message)
}

// IsKind reports whether err, or any error it wraps, is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
