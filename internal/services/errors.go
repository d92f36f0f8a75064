// Package services implements the business logic of the dotfile service: the
// collection access controller, the retrieval quota ledger, the license key
// registry, the collection lifecycle orchestrator, and the user service.
// Services coordinate repositories and blob storage but never touch HTTP;
// handlers translate the typed errors defined here into status codes.
package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service error. Handlers map kinds to HTTP status codes;
// services never collapse two kinds into one.
type Kind int

const (
	// KindUnknown is the zero kind, used for unclassified errors
	KindUnknown Kind = iota
	// KindUnauthenticated means the caller presented no valid identity
	KindUnauthenticated
	// KindForbidden means the identified caller may not perform the action
	KindForbidden
	// KindNotFound means the addressed resource does not exist
	KindNotFound
	// KindValidationFailed means the request shape or content is invalid
	KindValidationFailed
	// KindQuotaExceeded means the caller's retrieval quota is exhausted
	KindQuotaExceeded
	// KindConflict means the request collides with existing state
	KindConflict
	// KindStorageFailure means a blob storage operation failed
	KindStorageFailure
	// KindPersistenceFailure means a database operation failed
	KindPersistenceFailure
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidationFailed:
		return "validation_failed"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindConflict:
		return "conflict"
	case KindStorageFailure:
		return "storage_failure"
	case KindPersistenceFailure:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

// Error is a classified service error. Message is safe to return to clients;
// the wrapped cause is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on kind, so sentinel-style comparisons like
// errors.Is(err, &Error{Kind: KindNotFound}) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ErrUnauthenticated creates an unauthenticated error
func ErrUnauthenticated(message string) *Error {
	return errorf(KindUnauthenticated, "%s", message)
}

// ErrForbidden creates a forbidden error
func ErrForbidden(message string) *Error {
	return errorf(KindForbidden, "%s", message)
}

// ErrNotFound creates a not-found error
func ErrNotFound(format string, args ...interface{}) *Error {
	return errorf(KindNotFound, format, args...)
}

// ErrValidation creates a validation error
func ErrValidation(format string, args ...interface{}) *Error {
	return errorf(KindValidationFailed, format, args...)
}

// ErrConflict creates a conflict error
func ErrConflict(format string, args ...interface{}) *Error {
	return errorf(KindConflict, format, args...)
}

// ErrQuotaExceeded creates a quota-exceeded error naming the limit
func ErrQuotaExceeded(limit int) *Error {
	return errorf(KindQuotaExceeded, "monthly retrieval limit of %d reached", limit)
}

// ErrStorage wraps a blob storage failure
func ErrStorage(err error, message string) *Error {
	return wrap(KindStorageFailure, err, message)
}

// ErrPersistence wraps a database failure
func ErrPersistence(err error, message string) *Error {
	return wrap(KindPersistenceFailure, err, message)
}
