package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"codemeet/internal/core/domain"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if !errors.Is(err, originalErr) {
		t.Errorf("errors.Is should find the cause")
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewNotFoundError("room")
	wrapped := fmt.Errorf("handler: %w", appErr)

	if got := GetAppError(wrapped); got != appErr {
		t.Errorf("GetAppError() = %v, want %v", got, appErr)
	}
	if got := GetAppError(errors.New("plain")); got != nil {
		t.Errorf("GetAppError(plain) = %v, want nil", got)
	}
	if got := GetAppError(nil); got != nil {
		t.Errorf("GetAppError(nil) = %v, want nil", got)
	}
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"session not found", domain.ErrSessionNotFound, ErrCodeNotFound, http.StatusNotFound},
		{"room not found", fmt.Errorf("load: %w", domain.ErrRoomNotFound), ErrCodeNotFound, http.StatusNotFound},
		{"invalid key", domain.ErrInvalidSessionKey, ErrCodeInvalidInput, http.StatusBadRequest},
		{"invalid room", domain.ErrInvalidRoomID, ErrCodeInvalidInput, http.StatusBadRequest},
		{"not in room", domain.ErrNotInRoom, ErrCodeForbidden, http.StatusForbidden},
		{"unknown", errors.New("redis: connection refused"), ErrCodeInternal, http.StatusInternalServerError},
		{"already app error", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDomain(tt.err)
			if got.Code != tt.code {
				t.Errorf("Code = %v, want %v", got.Code, tt.code)
			}
			if got.HTTPStatus != tt.status {
				t.Errorf("HTTPStatus = %v, want %v", got.HTTPStatus, tt.status)
			}
		})
	}

	if FromDomain(nil) != nil {
		t.Error("FromDomain(nil) should be nil")
	}
}

func TestFromDomain_HidesInternalCause(t *testing.T) {
	got := FromDomain(errors.New("mongo: auth failed for user admin"))
	if strings.Contains(got.Message, "mongo") {
		t.Errorf("Message leaks cause: %q", got.Message)
	}
}
