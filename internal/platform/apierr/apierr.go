package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the client facing text. Domain errors expose their message
// without the operation prefix; internal failures never leak details.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if e.Status >= http.StatusInternalServerError && e.Status != http.StatusBadGateway && e.Status != http.StatusServiceUnavailable {
		return "internal server error"
	}
	if e.Err == nil {
		return e.Code
	}
	return domainagg.MessageOf(e.Err)
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }

func Unauthorized(err error) *Error { return New(http.StatusUnauthorized, "unauthorized", err) }

func Forbidden(err error) *Error { return New(http.StatusForbidden, string(domainagg.CodeForbidden), err) }

func NotFound(err error) *Error { return New(http.StatusNotFound, string(domainagg.CodeNotFound), err) }

// StatusFor maps a domain error code onto an HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeForbidden, domainagg.CodeNotEnrolled, domainagg.CodeCourseUnavailable:
		return http.StatusForbidden
	case domainagg.CodeValidation,
		domainagg.CodeAlreadyCompleted,
		domainagg.CodeAlreadyProcessed,
		domainagg.CodeCourseIncomplete,
		domainagg.CodePreconditionFailed:
		return http.StatusBadRequest
	case domainagg.CodeAlreadyEnrolled, domainagg.CodeAlreadyRefunded, domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case domainagg.CodeUpstream:
		return http.StatusBadGateway
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError converts any error into an *Error. Existing *Error values pass
// through; domain errors are mapped by code; everything else is internal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := domainagg.CodeOf(err)
	if code == "" {
		code = domainagg.CodeInternal
	}
	return New(StatusFor(code), string(code), err)
}
