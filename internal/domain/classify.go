package domain

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// ErrorClass is the category an error falls into for state and presentation.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassAuth
	ClassTransient
	ClassTimeout
	ClassInvalidConfig
	ClassUnexpected
)

func (c ErrorClass) String() string {
	switch c {
	case ClassAuth:
		return "auth"
	case ClassTransient:
		return "transient"
	case ClassTimeout:
		return "timeout"
	case ClassInvalidConfig:
		return "invalid_config"
	case ClassUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// authMarkers match gateway codes/messages that mean the credentials were rejected.
var authMarkers = []string{"auth", "unauthorized", "forbidden"}

// Classify maps a transport or protocol error to an ErrorClass. The monitor
// uses it to pick the next state and PresentError uses it to phrase the
// banner, so both always agree.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	if errors.Is(err, ErrInvalidBaseURL) {
		return ClassInvalidConfig
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		if containsAnyFold(gwErr.Code, authMarkers...) || containsAnyFold(gwErr.Message, authMarkers...) {
			return ClassAuth
		}
		return ClassUnknown
	}
	if errors.Is(err, ErrAuthInvalid) {
		return ClassAuth
	}

	if isTimeout(err) {
		return ClassTimeout
	}
	if errors.Is(err, ErrUnexpectedFrame) {
		return ClassUnexpected
	}
	if isTransient(err) {
		return ClassTransient
	}

	// Errors from layers that only render text (HTTP handshake rejections, wrapped SDK errors).
	if containsAnyFold(err.Error(), "unauthorized", "forbidden") {
		return ClassAuth
	}
	return ClassUnknown
}

// IsAuthFailure reports whether err means the gateway rejected our credentials.
func IsAuthFailure(err error) bool {
	return Classify(err) == ClassAuth
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isTransient(err error) bool {
	if isNetworkDown(err) || isCannotConnect(err) {
		return true
	}
	return errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

func isNetworkDown(err error) bool {
	return errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.ENETDOWN)
}

func isCannotConnect(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isTLSFailure(err error) bool {
	var (
		certErr      *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidCert  x509.CertificateInvalidError
		recordHeader tls.RecordHeaderError
	)
	return errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &recordHeader)
}

// containsAnyFold reports whether s contains any of the substrings, ignoring case.
func containsAnyFold(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
