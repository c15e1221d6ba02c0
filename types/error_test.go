package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrTransport, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithProvider("brightdata_chatgpt").
		WithAttempt(2)

	if GetErrorCode(err) != ErrTransport {
		t.Fatalf("expected code %s, got %s", ErrTransport, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
	if err.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", err.Attempt)
	}
}

func TestError_RetryableDefaults(t *testing.T) {
	t.Parallel()

	// 不可重试的错误类型
	for _, code := range []ErrorCode{
		ErrConfigurationMissing, ErrAuthentication, ErrInvalidInput,
		ErrPayloadTooLarge, ErrCircuitOpen,
	} {
		if NewError(code, "x").Retryable {
			t.Fatalf("code %s should not be retryable by default", code)
		}
	}

	// 可重试的错误类型
	for _, code := range []ErrorCode{
		ErrTimeout, ErrTransport, ErrParse, ErrEmptyResponse, ErrUnknown,
	} {
		if !NewError(code, "x").Retryable {
			t.Fatalf("code %s should be retryable by default", code)
		}
	}
}

func TestAsError_WrapsPlainErrors(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	wrapped := AsError(plain)
	if wrapped.Code != ErrUnknown {
		t.Fatalf("expected UNKNOWN, got %s", wrapped.Code)
	}
	if !errors.Is(wrapped, plain) {
		t.Fatalf("expected cause preserved")
	}
	if AsError(nil) != nil {
		t.Fatalf("AsError(nil) should be nil")
	}

	structured := NewError(ErrAuthentication, "denied")
	if AsError(structured) != structured {
		t.Fatalf("structured errors must pass through unchanged")
	}
}

func TestCanonicalCollectorKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []string
		expected string
	}{
		{"empty", nil, ""},
		{"single", []string{"chatgpt"}, "chatgpt"},
		{"sorted", []string{"perplexity", "chatgpt"}, "chatgpt,perplexity"},
		{"dedup", []string{"claude", "claude", "gemini"}, "claude,gemini"},
		{"trims blanks", []string{" chatgpt ", ""}, "chatgpt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalCollectorKey(tt.input); got != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestStatusTerminality(t *testing.T) {
	t.Parallel()

	if ExecutionPending.IsTerminal() || ExecutionRunning.IsTerminal() {
		t.Fatalf("pending/running must not be terminal")
	}
	if !ExecutionCompleted.IsTerminal() || !ExecutionFailed.IsTerminal() {
		t.Fatalf("completed/failed must be terminal")
	}
	if ResultFailedRetry.IsTerminal() {
		t.Fatalf("failed_retry is not terminal")
	}
	if !ExecutionRunning.Valid() || ExecutionStatus("bogus").Valid() {
		t.Fatalf("status validity check broken")
	}
}
