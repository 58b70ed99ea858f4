package domain

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func dialErr(errno syscall.Errno) error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errno)}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassUnknown},
		{"invalid url", InvalidBaseURLError("127.0.0.1:9999"), ClassInvalidConfig},
		{"auth code", &GatewayError{Code: "auth.invalid", Message: "Invalid token"}, ClassAuth},
		{"unauthorized message", &GatewayError{Code: "E401", Message: "Unauthorized"}, ClassAuth},
		{"forbidden mixed case", &GatewayError{Message: "FORBIDDEN scope"}, ClassAuth},
		{"wrapped auth sentinel", fmt.Errorf("gw: %w", ErrAuthInvalid), ClassAuth},
		{"plain gateway error", &GatewayError{Code: "E_BUSY", Message: "try later"}, ClassUnknown},
		{"phase timeout", &TimeoutError{Operation: "waiting for Gateway frame"}, ClassTimeout},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), ClassTimeout},
		{"unexpected frame", fmt.Errorf("decode: %w", ErrUnexpectedFrame), ClassUnexpected},
		{"refused", dialErr(syscall.ECONNREFUSED), ClassTransient},
		{"network unreachable", dialErr(syscall.ENETUNREACH), ClassTransient},
		{"dns", &net.DNSError{Err: "no such host", Name: "gw.invalid"}, ClassTransient},
		{"connection lost", fmt.Errorf("%w: %w", ErrConnectionLost, io.EOF), ClassTransient},
		{"circuit open", fmt.Errorf("%w: open", ErrCircuitOpen), ClassTransient},
		{"text fallback", errors.New("expected handshake response status code 101 but got 403 Forbidden"), ClassAuth},
		{"other", errors.New("mystery"), ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, IsAuthFailure(&GatewayError{Code: "auth.invalid", Message: "Invalid token"}))
	assert.False(t, IsAuthFailure(dialErr(syscall.ECONNREFUSED)))
}

func TestPresentError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid url", InvalidBaseURLError("localhost"), MsgInvalidURL},
		{"auth", &GatewayError{Code: "auth.invalid", Message: "Invalid token"}, MsgAuthFailed},
		{"timeout with phase", &TimeoutError{Operation: "connecting to Gateway"}, "Gateway timed out while connecting to Gateway."},
		{"plain deadline", context.DeadlineExceeded, MsgNetworkTimeout},
		{"unexpected", ErrUnexpectedFrame, MsgUnexpectedFrame},
		{"gateway message", &GatewayError{Code: "E_BUSY", Message: "busy"}, "Gateway error: busy"},
		{"gateway code only", &GatewayError{Code: "E_BUSY"}, "Gateway error: E_BUSY"},
		{"gateway empty", &GatewayError{}, MsgGenericGateway},
		{"refused", dialErr(syscall.ECONNREFUSED), MsgCannotConnect},
		{"no network", dialErr(syscall.ENETUNREACH), MsgNoNetwork},
		{"lost", ErrConnectionLost, MsgConnectionLost},
		{"circuit", ErrCircuitOpen, MsgCircuitOpen},
		{"not implemented", ErrNotImplemented, MsgNotImplemented},
		{"tls", fmt.Errorf("handshake: %w", x509.UnknownAuthorityError{}), MsgTLSFailure},
		{"fallback text", errors.New("mystery"), "mystery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PresentError(tt.err))
		})
	}
}
