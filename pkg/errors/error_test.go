package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	. "github.com/turingarena/turingarena-sub002/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{InvalidParams, "Invalid parameters"},
		{TimeLimitExceeded, "Time limit exceeded"},
		{MemoryLimitExceeded, "Memory limit exceeded"},
		{ErrorCode(1), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{NotFound, 404},
		{InterfaceTooLarge, 413},
		{TooManyRequests, 429},
		{InterfaceSyntaxError, 422},
		{InternalServerError, 500},
		{ProtocolViolation, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestErrorCode_IsResourceLimit(t *testing.T) {
	if !TimeLimitExceeded.IsResourceLimit() || !MemoryLimitExceeded.IsResourceLimit() {
		t.Fatal("limit codes should be resource limits")
	}
	if RuntimeError.IsResourceLimit() || ProtocolViolation.IsResourceLimit() {
		t.Fatal("runtime and protocol errors are not resource limits")
	}
}

func TestErrorCode_Category(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want Category
	}{
		{Success, CategoryNone},
		{CacheError, CategorySystem},
		{StorageError, CategorySystem},
		{InterfaceSyntaxError, CategoryCompile},
		{GlobalVariableMissing, CategoryCompile},
		{UnexpectedRequest, CategoryProtocol},
		{InternalDriverError, CategoryProtocol},
		{SandboxStreamClosed, CategorySandbox},
		{RuntimeError, CategorySandbox},
		{TimeLimitExceeded, CategoryResource},
		{MemoryLimitExceeded, CategoryResource},
	}
	for _, tt := range tests {
		if got := tt.code.Category(); got != tt.want {
			t.Errorf("%d.Category() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestStackStartsAtCaller(t *testing.T) {
	err := New(InternalDriverError)
	if !strings.Contains(err.Stack, "TestStackStartsAtCaller") {
		t.Fatalf("stack should start at the caller:%s", err.Stack)
	}
	if strings.Contains(err.Stack, "newError") {
		t.Fatalf("stack should not include constructor frames:%s", err.Stack)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(UnexpectedRequest, "expected call to %s", "f")

	want := "expected call to f"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	if err.Stack == "" {
		t.Error("stack should be captured")
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("broken pipe")
	wrappedErr := Wrap(originalErr, SandboxStreamClosed)

	if wrappedErr.Code != SandboxStreamClosed {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, SandboxStreamClosed)
	}

	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}

	if Wrap(nil, SandboxStreamClosed) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errors.New("EOF"), ProxyStreamClosed, "read request")
	if err.Error() != "read request: EOF" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestGetCodeThroughFmtWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(UnmatchedBranch), want: UnmatchedBranch},
		{name: "wrapped custom error", err: fmt.Errorf("drive: %w", New(TimeLimitExceeded)), want: TimeLimitExceeded},
		{name: "standard error", err: errors.New("standard error"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(UnmatchedBranch)

	if !Is(err, UnmatchedBranch) {
		t.Error("Is() should return true for matching code")
	}

	if Is(err, AmbiguousBranch) {
		t.Error("Is() should return false for non-matching code")
	}

	if Is(nil, UnmatchedBranch) {
		t.Error("Is() should return false for nil error")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := New(TimeLimitExceeded).
		WithDetail("time_ms", int64(1200)).
		WithDetails(map[string]interface{}{"memory_kb": int64(2048)})

	if err.Details["time_ms"] != int64(1200) {
		t.Error("time detail not set correctly")
	}
	if err.Details["memory_kb"] != int64(2048) {
		t.Error("memory detail not set correctly")
	}
}

func TestCommonErrorConstructors(t *testing.T) {
	t.Run("BadRequest", func(t *testing.T) {
		err := BadRequest("invalid input")
		if err.Code != InvalidParams {
			t.Error("BadRequest should use InvalidParams code")
		}
	})

	t.Run("InternalError", func(t *testing.T) {
		err := InternalError(errors.New("boom"))
		if err.Code != InternalServerError {
			t.Error("InternalError should use InternalServerError code")
		}
	})
}
