package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := NewAppError(ErrCodeAcquisitionTransport, "weather request failed", nil)

	expected := "acquisition_transport: weather request failed"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorErrorFormatWithCause(t *testing.T) {
	appErr := NewAppError(ErrCodePersistIOFailure, "rename failed", errors.New("disk full"))

	expected := "persist_io_failure: rename failed: disk full"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorErrorsIs(t *testing.T) {
	sentinel := errors.New("sentinel")
	wrapped := fmt.Errorf("cycle: %w", NewAppError(ErrCodeUploadRejected, "rejected", sentinel))

	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should find the sentinel through the AppError chain")
	}
}

func TestAppErrorWithDetailsDoesNotMutate(t *testing.T) {
	original := &AppError{
		Code:    ErrCodeNotifyTransportFailure,
		Message: "dial failed",
		Details: map[string]any{"host": "smtp.example.com"},
	}

	enriched := original.WithDetails(map[string]any{"port": 587})

	if len(original.Details) != 1 {
		t.Errorf("original details mutated: %v", original.Details)
	}
	if enriched.Details["host"] != "smtp.example.com" || enriched.Details["port"] != 587 {
		t.Errorf("enriched details = %v", enriched.Details)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ErrCodeInternalUnexpected},
		{"app error", NewAppError(ErrCodeAcquisitionTimeout, "slow", nil), ErrCodeAcquisitionTimeout},
		{"wrapped app error", fmt.Errorf("x: %w", NewAppError(ErrCodeUploadRejected, "no", nil)), ErrCodeUploadRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsFatalOnlyForExhausted(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeAcquisitionTimeout,
		ErrCodeAcquisitionTransport,
		ErrCodeAcquisitionMalformedResponse,
		ErrCodeAcquisitionMalformedRow,
		ErrCodePersistIOFailure,
		ErrCodeNotifyAuthFailure,
		ErrCodeUploadTransportFailure,
	}
	for _, code := range codes {
		if IsFatal(NewAppError(code, "x", nil)) {
			t.Errorf("IsFatal(%s) = true, want false", code)
		}
	}
	if !IsFatal(NewAppError(ErrCodeAcquisitionExhausted, "empty", nil)) {
		t.Error("IsFatal(acquisition_exhausted) = false, want true")
	}
	if IsFatal(nil) {
		t.Error("IsFatal(nil) = true, want false")
	}
}

func TestErrorCodeComponent(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeAcquisitionMalformedRow: "acquisition",
		ErrCodePersistIOFailure:        "persist",
		ErrCodeNotifyAuthFailure:       "notify",
		ErrCodeUploadRejected:          "upload",
		ErrorCode("plain"):             "plain",
	}
	for code, want := range tests {
		if got := code.Component(); got != want {
			t.Errorf("%s.Component() = %q, want %q", code, got, want)
		}
	}
}
