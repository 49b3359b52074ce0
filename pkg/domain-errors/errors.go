// Package domainerrors carries user-facing error codes from the engine to its callers.
//
// Services translate infrastructure facts (pkg/platform/sentinel) into coded errors here. The
// transport layer maps codes to status codes with HTTPStatus and never inspects messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"lexicon/pkg/platform/sentinel"
)

// Code classifies an error for callers.
type Code string

const (
	CodeBadRequest               Code = "bad_request"
	CodeValidation               Code = "validation"
	CodeInvalidInput             Code = "invalid_input"
	CodeInvariantViolation       Code = "invariant_violation"
	CodeNotFound                 Code = "not_found"
	CodeConflict                 Code = "conflict"
	CodeTimeout                  Code = "timeout"
	CodeInternal                 Code = "internal_error"
	CodeCodeAlreadyPresent       Code = "code_already_present"
	CodeCodeNotPresent           Code = "code_not_present"
	CodeInvalidEnumValue         Code = "invalid_enum_value"
	CodeLackingUserID            Code = "lacking_user_id"
	CodeLackingRequiredParameter Code = "lacking_required_parameter"
)

// Error is a coded error with optional structured details for diagnosis.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// With attaches a detail field and returns the same error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Detail returns a detail value, or nil.
func (e *Error) Detail(key string) any {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost coded error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost coded error, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error carries code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	de, ok := As(err)
	return ok && de.Code == code
}

// Is reports whether any error in the chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

var statusByCode = map[Code]int{
	CodeBadRequest:               http.StatusBadRequest,
	CodeValidation:               http.StatusBadRequest,
	CodeInvalidInput:             http.StatusBadRequest,
	CodeInvariantViolation:       http.StatusBadRequest,
	CodeCodeAlreadyPresent:       http.StatusBadRequest,
	CodeInvalidEnumValue:         http.StatusBadRequest,
	CodeLackingUserID:            http.StatusBadRequest,
	CodeLackingRequiredParameter: http.StatusBadRequest,
	CodeNotFound:                 http.StatusNotFound,
	CodeCodeNotPresent:           http.StatusNotFound,
	CodeConflict:                 http.StatusConflict,
	CodeTimeout:                  http.StatusGatewayTimeout,
	CodeInternal:                 http.StatusInternalServerError,
}

// HTTPStatus maps an error to the status code the transport layer should answer with.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// InvalidEnumValue reports a controlled value outside its allowed set.
func InvalidEnumValue(field, value string, allowed []string) *Error {
	sorted := append([]string(nil), allowed...)
	sort.Strings(sorted)
	return Newf(CodeInvalidEnumValue, "invalid %s %q, allowed values: %s", field, value, strings.Join(sorted, ", ")).
		With("field", field).
		With("value", value).
		With("allowed", sorted)
}

// FromStorage translates storage sentinels: ErrNotFound becomes CodeNotFound, ErrConflict
// becomes CodeConflict, anything else CodeInternal. Coded errors pass through unchanged.
func FromStorage(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return Wrap(err, CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return Wrap(err, CodeConflict, msg)
	default:
		return Wrap(err, CodeInternal, msg)
	}
}
