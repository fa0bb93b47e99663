package integration

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for callers and for the HTTP boundary.
type Code string

const (
	CodeUnsupportedAppType   Code = "UNSUPPORTED_APP_TYPE"
	CodeIntegrationNotFound  Code = "INTEGRATION_NOT_FOUND"
	CodeDuplicateIntegration Code = "DUPLICATE_INTEGRATION"
	CodeTokenExchangeFailed  Code = "TOKEN_EXCHANGE_FAILED"
	CodeTokenRefreshFailed   Code = "TOKEN_REFRESH_FAILED"
	CodeInvalidState         Code = "INVALID_STATE"
	CodeProviderAPIFailure   Code = "PROVIDER_API_FAILURE"
)

// Error is the typed error returned by every calconnect component.
type Error struct {
	Code    Code
	Message string // safe to show to end users
	Err     error  // underlying cause, never shown to end users
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Code, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus maps the code to the status used at the HTTP boundary.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeUnsupportedAppType, CodeInvalidState, CodeDuplicateIntegration:
		return http.StatusBadRequest
	case CodeIntegrationNotFound:
		return http.StatusNotFound
	case CodeTokenExchangeFailed, CodeTokenRefreshFailed, CodeProviderAPIFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new typed error
func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnsupportedAppType   = &Error{Code: CodeUnsupportedAppType}
	ErrIntegrationNotFound  = &Error{Code: CodeIntegrationNotFound}
	ErrDuplicateIntegration = &Error{Code: CodeDuplicateIntegration}
	ErrTokenExchangeFailed  = &Error{Code: CodeTokenExchangeFailed}
	ErrTokenRefreshFailed   = &Error{Code: CodeTokenRefreshFailed}
	ErrInvalidState         = &Error{Code: CodeInvalidState}
	ErrProviderAPIFailure   = &Error{Code: CodeProviderAPIFailure}
)

// NotFound reports a missing integration for appType.
func NotFound(appType AppType) *Error {
	return NewError(CodeIntegrationNotFound, "Integration not found", fmt.Errorf("app type %s", appType))
}

// Duplicate reports an existing integration for appType.
func Duplicate(appType AppType) *Error {
	return NewError(CodeDuplicateIntegration, fmt.Sprintf("%s already connected", appType), nil)
}

// AsError extracts the typed error, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusFor returns the HTTP status for any error.
func StatusFor(err error) int {
	if e, ok := AsError(err); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// MessageFor returns a user-safe message for any error.
func MessageFor(err error) string {
	if e, ok := AsError(err); ok && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}
