package lib

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind represents the category of error
type ErrorKind string

const (
	// KindValidation is a caller error, never retried
	KindValidation ErrorKind = "validation"
	// KindConflict means the requested transition does not apply to the current state
	KindConflict ErrorKind = "conflict"
	// KindNotFound means the addressed entity does not exist
	KindNotFound ErrorKind = "not_found"
	// KindForbidden means the caller does not own the addressed entity
	KindForbidden ErrorKind = "forbidden"
	// KindTransientIO covers timeouts and unreachable stores or endpoints
	KindTransientIO ErrorKind = "transient_io"
	// KindPartialWrite means only some documents of a multi-document mutation were written
	KindPartialWrite ErrorKind = "partial_write"
	// KindInconsistent means a partial write could not be completed after retries
	KindInconsistent ErrorKind = "inconsistent"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Kind      ErrorKind
	Message   string
	Timestamp time.Time
	Err       error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind and message so wrapped copies still compare equal
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// NewBaseError creates a new base error
func NewBaseError(kind ErrorKind, message string, err error) *BaseError {
	return &BaseError{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Connection errors

var (
	ErrInvalidTarget     = NewBaseError(KindValidation, "invalid connection target", nil)
	ErrAlreadyConnected  = NewBaseError(KindConflict, "users are already connected", nil)
	ErrAlreadyPending    = NewBaseError(KindConflict, "a connection request is already pending", nil)
	ErrNoSuchRequest     = NewBaseError(KindConflict, "no pending connection request", nil)
	ErrNotConnected      = NewBaseError(KindConflict, "users are not connected", nil)
	ErrStateInconsistent = NewBaseError(KindInconsistent, "state inconsistent, retry", nil)
	ErrUserNotFound      = NewBaseError(KindNotFound, "user not found", nil)
)

// Notification errors

var (
	ErrNotificationNotFound = NewBaseError(KindNotFound, "notification not found", nil)
	ErrNotRecipient         = NewBaseError(KindForbidden, "not authorized to modify this notification", nil)
	ErrIndexUnavailable     = NewBaseError(KindTransientIO, "ordered index unavailable", nil)
	ErrAllSourcesFailed     = NewBaseError(KindTransientIO, "all delivery sources failed", nil)
)

// PartialWriteError reports a multi-document mutation where some documents were written
type PartialWriteError struct {
	*BaseError
	Applied []string
	Failed  []string
}

// NewPartialWriteError creates a partial write error naming applied and failed documents
func NewPartialWriteError(applied, failed []string, err error) *PartialWriteError {
	return &PartialWriteError{
		BaseError: NewBaseError(KindPartialWrite,
			fmt.Sprintf("applied [%s], failed [%s]", strings.Join(applied, ","), strings.Join(failed, ",")), err),
		Applied: applied,
		Failed:  failed,
	}
}

// Transient wraps an I/O failure as a transient error
func Transient(message string, err error) error {
	return NewBaseError(KindTransientIO, message, err)
}

// KindOf returns the kind of the first BaseError in the chain, or empty
func KindOf(err error) ErrorKind {
	var pw *PartialWriteError
	if errors.As(err, &pw) {
		return KindPartialWrite
	}
	var be *BaseError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsKind checks if an error is of a specific kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether repeating the same operation may succeed
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransientIO, KindPartialWrite, KindInconsistent:
		return true
	}
	return false
}

// StatusCode maps an error to the HTTP status the API responds with
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindForbidden:
		return fiber.StatusForbidden
	case KindConflict:
		return fiber.StatusConflict
	case KindInconsistent, KindTransientIO, KindPartialWrite:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}
