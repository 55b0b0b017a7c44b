package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors. The prefix
// before the first underscore names the component that produced it.
type ErrorCode string

// Complete error code constants.
// All components MUST use these constants instead of hardcoded strings.
const (
	// Acquisition (DataSource)
	ErrCodeAcquisitionTimeout           ErrorCode = "acquisition_timeout"
	ErrCodeAcquisitionTransport         ErrorCode = "acquisition_transport"
	ErrCodeAcquisitionMalformedResponse ErrorCode = "acquisition_malformed_response"
	ErrCodeAcquisitionExhausted         ErrorCode = "acquisition_exhausted"
	ErrCodeAcquisitionMalformedRow      ErrorCode = "acquisition_malformed_row"

	// Persistence (StatePersister, CursorStore)
	ErrCodePersistIOFailure ErrorCode = "persist_io_failure"

	// Notification (Notifier)
	ErrCodeNotifyAuthFailure      ErrorCode = "notify_auth_failure"
	ErrCodeNotifyTransportFailure ErrorCode = "notify_transport_failure"

	// Telemetry (TelemetrySink)
	ErrCodeUploadTransportFailure ErrorCode = "upload_transport_failure"
	ErrCodeUploadRejected         ErrorCode = "upload_rejected"

	// Upstream HTTP (BaseClient); callers translate these into their own codes.
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamTimeout     ErrorCode = "upstream_timeout"

	ErrCodeConfigInvalid      ErrorCode = "config_invalid"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// Component returns the component prefix of the code ("acquisition",
// "persist", "notify", "upload", ...).
func (c ErrorCode) Component() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}

// AppError is the standard application error type used throughout airwatch.
// Every component boundary converts its failures into an AppError so the
// sampling loop can log a consistent component/reason pair.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from an error chain. Errors that carry no
// AppError report ErrCodeInternalUnexpected; nil reports "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}

// IsFatal reports whether err ends the sampling loop. Only an exhausted data
// source is fatal; every other failure is recoverable at the cycle boundary.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrCodeAcquisitionExhausted
}
