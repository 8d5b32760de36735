package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "invalid input"),
			want: "VALIDATION_ERROR: invalid input",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeInternal, "something failed", errors.New("underlying")),
			want: "INTERNAL_ERROR: something failed: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeTransport, "wrapped", underlying)

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(CodeValidation, "invalid").
		WithDetail("field", "name").
		WithDetail("reason", "required")

	if err.Details["field"] != "name" {
		t.Errorf("Details[field] = %s, want name", err.Details["field"])
	}

	if err.Details["reason"] != "required" {
		t.Errorf("Details[reason] = %s, want required", err.Details["reason"])
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, CodeInvalidRequest},
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeForbidden},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusConflict, CodeAlreadyExists},
		{http.StatusServiceUnavailable, CodeUnavailable},
		{http.StatusGatewayTimeout, CodeTimeout},
		{http.StatusTeapot, CodeInvalidRequest},
		{http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := FromStatus(tt.status, "test")
			if err.Code != tt.code {
				t.Errorf("FromStatus(%d).Code = %s, want %s", tt.status, err.Code, tt.code)
			}
		})
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError("bad input")
		if err.Code != CodeValidation {
			t.Errorf("Code = %s, want %s", err.Code, CodeValidation)
		}
	})

	t.Run("NotFoundError", func(t *testing.T) {
		err := NotFoundError("incident")
		if err.Code != CodeNotFound {
			t.Errorf("Code = %s, want %s", err.Code, CodeNotFound)
		}
		if err.Message != "incident not found" {
			t.Errorf("Message = %s, want 'incident not found'", err.Message)
		}
	})

	t.Run("UnauthorizedError", func(t *testing.T) {
		err := UnauthorizedError()
		if err.Code != CodeUnauthorized {
			t.Errorf("Code = %s, want %s", err.Code, CodeUnauthorized)
		}
	})

	t.Run("TimeoutError", func(t *testing.T) {
		err := TimeoutError("reachability probe")
		if err.Code != CodeTimeout {
			t.Errorf("Code = %s, want %s", err.Code, CodeTimeout)
		}
		if err.Message != "reachability probe timed out" {
			t.Errorf("Message = %s", err.Message)
		}
	})

	t.Run("TransportError", func(t *testing.T) {
		underlying := errors.New("connection reset")
		err := TransportError("socket closed", underlying)
		if err.Code != CodeTransport {
			t.Errorf("Code = %s, want %s", err.Code, CodeTransport)
		}
		if err.Unwrap() != underlying {
			t.Error("Underlying error not preserved")
		}
	})

	t.Run("ProtocolError", func(t *testing.T) {
		err := ProtocolError("malformed frame", errors.New("unexpected EOF"))
		if err.Code != CodeProtocol {
			t.Errorf("Code = %s, want %s", err.Code, CodeProtocol)
		}
	})
}

func TestIsUnauthorized(t *testing.T) {
	unauthorized := UnauthorizedError()
	other := ValidationError("test")

	if !IsUnauthorized(unauthorized) {
		t.Error("IsUnauthorized(UnauthorizedError) = false, want true")
	}

	if IsUnauthorized(other) {
		t.Error("IsUnauthorized(ValidationError) = true, want false")
	}

	if IsUnauthorized(errors.New("standard error")) {
		t.Error("IsUnauthorized(standard error) = true, want false")
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := NotFoundError("test")
	other := ValidationError("test")

	if !IsNotFound(notFound) {
		t.Error("IsNotFound(NotFoundError) = false, want true")
	}

	if IsNotFound(other) {
		t.Error("IsNotFound(ValidationError) = true, want false")
	}
}

func TestIsTimeout(t *testing.T) {
	timeout := TimeoutError("probe")
	other := NotFoundError("test")

	if !IsTimeout(timeout) {
		t.Error("IsTimeout(TimeoutError) = false, want true")
	}

	if IsTimeout(other) {
		t.Error("IsTimeout(NotFoundError) = true, want false")
	}
}
