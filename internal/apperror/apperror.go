// Package apperror classifies failures into the kinds the API exposes.
//
// User-safe kinds carry a message that may be shown verbatim. KindInternal
// carries the cause for the logs only.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// GenericMessage is the only text a caller sees for internal failures.
const GenericMessage = "an unexpected error occurred, support has been notified"

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) Code() string {
	switch k {
	case KindBadRequest:
		return "INVALID_INPUT"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}

type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	Details       map[string]any
	Err           error
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{
		Kind:          kind,
		Message:       msg,
		CorrelationID: uuid.NewString(),
		Err:           cause,
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUserSafe reports whether Message may be returned to the caller as is.
func (e *Error) IsUserSafe() bool {
	return e.Kind != KindInternal
}

// PublicMessage is the text the caller receives.
func (e *Error) PublicMessage() string {
	if e.IsUserSafe() {
		return e.Message
	}
	return GenericMessage
}

// WithDetails attaches diagnostic fields that are logged, never returned.
func (e *Error) WithDetails(kv map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Details[k] = v
	}
	return e
}

func BadRequest(msg string) *Error {
	return newError(KindBadRequest, msg, nil)
}

// BadRequestCause keeps the rejected input's error for the logs.
func BadRequestCause(msg string, cause error) *Error {
	return newError(KindBadRequest, msg, cause)
}

func Unauthorized(msg string) *Error {
	return newError(KindUnauthorized, msg, nil)
}

// UnauthorizedCause keeps the underlying reason for errors.Is checks.
func UnauthorizedCause(msg string, cause error) *Error {
	return newError(KindUnauthorized, msg, cause)
}

func Forbidden(msg string) *Error {
	return newError(KindForbidden, msg, nil)
}

func NotFound(msg string) *Error {
	return newError(KindNotFound, msg, nil)
}

func Conflict(msg string) *Error {
	return newError(KindConflict, msg, nil)
}

// ConflictCause keeps a sentinel the caller can match with errors.Is.
func ConflictCause(msg string, cause error) *Error {
	return newError(KindConflict, msg, cause)
}

func Internal(cause error, msg string) *Error {
	return newError(KindInternal, msg, cause)
}

// From returns err as an *Error, classifying unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, "unclassified error")
}

// KindOf returns the kind of err, KindInternal for unknown errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
