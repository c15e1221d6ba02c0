package types

import "fmt"

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Collector error codes. Each code carries a fixed retryable default
// (see DefaultRetryable); adapters may override per instance.
const (
	ErrConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	ErrAuthentication       ErrorCode = "AUTHENTICATION"
	ErrInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrTimeout              ErrorCode = "TIMEOUT"
	ErrTransport            ErrorCode = "TRANSPORT"
	ErrParse                ErrorCode = "PARSE_ERROR"
	ErrEmptyResponse        ErrorCode = "EMPTY_RESPONSE"
	ErrPayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCircuitOpen          ErrorCode = "CIRCUIT_OPEN"
	ErrUnknown              ErrorCode = "UNKNOWN"
)

// retryableDefaults maps each code to its default retryable flag.
// PARSE_ERROR is retryable so async snapshots can be re-polled.
var retryableDefaults = map[ErrorCode]bool{
	ErrConfigurationMissing: false,
	ErrAuthentication:       false,
	ErrInvalidInput:         false,
	ErrTimeout:              true,
	ErrTransport:            true,
	ErrParse:                true,
	ErrEmptyResponse:        true,
	ErrPayloadTooLarge:      false,
	ErrCircuitOpen:          false,
	ErrUnknown:              true,
}

// DefaultRetryable returns the default retryable flag for a code.
// Unrecognized codes default to retryable, matching ErrUnknown.
func DefaultRetryable(code ErrorCode) bool {
	if v, ok := retryableDefaults[code]; ok {
		return v
	}
	return true
}

// Error represents a structured collector error with code, message, and metadata.
type Error struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"http_status,omitempty"`
	Retryable  bool           `json:"retryable"`
	Provider   string         `json:"provider,omitempty"`
	Attempt    int            `json:"attempt,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
// The retryable flag is seeded from the code's default.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: DefaultRetryable(code)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable overrides the retryable flag.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithAttempt records the attempt number the error occurred on.
func (e *Error) WithAttempt(attempt int) *Error {
	e.Attempt = attempt
	return e
}

// WithContext attaches a key/value pair to the error context.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsRetryable checks if an error is retryable.
// Non-structured errors are treated as retryable (ErrUnknown semantics).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return true
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ErrUnknown
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// AsError converts any error into a structured *Error, wrapping
// non-structured errors as ErrUnknown.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return NewError(ErrUnknown, err.Error()).WithCause(err)
}
