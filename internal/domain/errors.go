package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Category sentinels.
var (
	ErrTimeout         = fmt.Errorf("operation timed out")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrNotImplemented  = fmt.Errorf("not implemented yet")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrConnectionLost  = fmt.Errorf("connection lost")
	ErrCircuitOpen     = fmt.Errorf("circuit open")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrDecryption      = fmt.Errorf("decryption failed")
	ErrMonitorStopped  = fmt.Errorf("monitor stopped")
	ErrUnknownScenario = fmt.Errorf("unknown mock scenario")
)

// Gateway / RPC errors.
var (
	ErrInvalidBaseURL  = fmt.Errorf("invalid gateway base URL")
	ErrUnexpectedFrame = fmt.Errorf("unexpected gateway response")
	ErrGateway         = fmt.Errorf("gateway error")
)

// TimeoutError reports which wait phase of an RPC call ran out of time.
type TimeoutError struct {
	Operation string // e.g. "connecting to Gateway"
}

func (e *TimeoutError) Error() string { return "timed out while " + e.Operation }

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Timeout satisfies the net.Error convention.
func (e *TimeoutError) Timeout() bool { return true }

// GatewayError is a structured failure returned by the gateway in a "res" frame.
type GatewayError struct {
	Code    string
	Message string
	Details string
}

func (e *GatewayError) Error() string {
	var parts []string
	for _, p := range []string{e.Code, e.Message, e.Details} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ErrGateway.Error()
	}
	return strings.Join(parts, ": ")
}

func (e *GatewayError) Unwrap() error { return ErrGateway }

// InvalidBaseURLError wraps ErrInvalidBaseURL with the rejected input.
func InvalidBaseURLError(raw string) error {
	return fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
}

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Monitor.FetchNodes")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a failure the monitor's backoff
// cycle is expected to recover from without operator action.
func IsRetryableError(err error) bool {
	switch Classify(err) {
	case ClassTransient, ClassTimeout, ClassUnexpected:
		return true
	default:
		return false
	}
}

// ErrorCode is a machine-parseable error category for logs and scripted output.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeInvalidBaseURL  ErrorCode = "INVALID_BASE_URL"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeUnexpectedFrame ErrorCode = "UNEXPECTED_FRAME"
	CodeAuthFailed      ErrorCode = "AUTH_FAILED"
	CodeGateway         ErrorCode = "GATEWAY_ERROR"
	CodeUnreachable     ErrorCode = "UNREACHABLE"
	CodeCircuitOpen     ErrorCode = "CIRCUIT_OPEN"
	CodeNotImplemented  ErrorCode = "NOT_IMPLEMENTED"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
	CodeDecryption      ErrorCode = "DECRYPTION"
)

var sentinelCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrInvalidBaseURL, CodeInvalidBaseURL},
	{ErrCircuitOpen, CodeCircuitOpen},
	{ErrTimeout, CodeTimeout},
	{ErrUnexpectedFrame, CodeUnexpectedFrame},
	{ErrNotImplemented, CodeNotImplemented},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrDecryption, CodeDecryption},
}

// ErrorCodeOf returns the ErrorCode for the first matching sentinel in err's chain.
// Auth failures are detected through Classify so gateway-reported auth codes
// map to CodeAuthFailed as well.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if Classify(err) == ClassAuth {
		return CodeAuthFailed
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	if errors.Is(err, ErrGateway) {
		return CodeGateway
	}
	if Classify(err) == ClassTransient {
		return CodeUnreachable
	}
	return CodeUnknown
}
