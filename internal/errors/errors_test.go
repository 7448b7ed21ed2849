package errors

import (
	"errors"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(23001, "test error")

	if err.Code != 23001 {
		t.Errorf("Expected code 23001, got %d", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("Expected message 'test error', got '%s'", err.Message)
	}
	if err.Err != nil {
		t.Error("Expected Err to be nil")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			err:      NewError(23001, "test error"),
			expected: "[23001] test error",
		},
		{
			name:     "with wrapped error",
			err:      NewError(23001, "test error").Wrap(errors.New("original error")),
			expected: "[23001] test error: original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestAppError_Wrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrUnauthorized.Wrap(originalErr)

	if appErr.Code != ErrUnauthorized.Code {
		t.Errorf("Expected code %d, got %d", ErrUnauthorized.Code, appErr.Code)
	}
	if appErr.Message != ErrUnauthorized.Message {
		t.Errorf("Expected message '%s', got '%s'", ErrUnauthorized.Message, appErr.Message)
	}
	if appErr.Err != originalErr {
		t.Error("Expected wrapped error to be the original error")
	}
	if !errors.Is(appErr, originalErr) {
		t.Error("Expected errors.Is to match the original error")
	}
}

func TestIs(t *testing.T) {
	err := ErrChatForbidden.Wrap(errors.New("http 403"))

	if !Is(err, ErrChatForbidden) {
		t.Error("Expected Is to match ErrChatForbidden")
	}
	if Is(err, ErrUnauthorized) {
		t.Error("Expected Is not to match ErrUnauthorized")
	}
	if Is(errors.New("plain"), ErrUnauthorized) {
		t.Error("Expected Is to be false for plain error")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(ErrUnauthorized); got != CodeUnauthorized {
		t.Errorf("Expected %d, got %d", CodeUnauthorized, got)
	}
	if got := GetCode(errors.New("plain")); got != CodeNetworkError {
		t.Errorf("Expected default %d, got %d", CodeNetworkError, got)
	}
}
