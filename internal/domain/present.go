package domain

import (
	"errors"
	"strings"
)

// Banner messages. Exported so views and tests can compare against them.
const (
	MsgInvalidURL       = "Invalid Gateway URL. Include a scheme like http://127.0.0.1:18789"
	MsgUnexpectedFrame  = "Gateway returned an unexpected response. Check Gateway version and reconnect."
	MsgAuthFailed       = "Authentication failed. Check your Gateway token."
	MsgCannotConnect    = "Can't reach the Gateway. Check the URL and that the Gateway is running."
	MsgNoNetwork        = "No network connection."
	MsgNetworkTimeout   = "Gateway request timed out."
	MsgTLSFailure       = "Secure connection to Gateway failed. Check the certificate or use http:// for local Gateways."
	MsgConnectionLost   = "Connection to the Gateway was lost."
	MsgCircuitOpen      = "Gateway is failing repeatedly. Pausing requests briefly."
	MsgNotImplemented   = "Not implemented yet."
	MsgGenericGateway   = "Gateway error."
	msgGatewayErrPrefix = "Gateway error: "
)

// PresentError phrases err for the connection banner. The category comes from
// Classify; only the wording is decided here.
func PresentError(err error) string {
	if err == nil {
		return ""
	}

	switch Classify(err) {
	case ClassInvalidConfig:
		return MsgInvalidURL
	case ClassAuth:
		return MsgAuthFailed
	case ClassUnexpected:
		return MsgUnexpectedFrame
	case ClassTimeout:
		var te *TimeoutError
		if errors.As(err, &te) && te.Operation != "" {
			return "Gateway timed out while " + te.Operation + "."
		}
		return MsgNetworkTimeout
	case ClassTransient:
		switch {
		case errors.Is(err, ErrCircuitOpen):
			return MsgCircuitOpen
		case isNetworkDown(err):
			return MsgNoNetwork
		case isCannotConnect(err):
			return MsgCannotConnect
		default:
			return MsgConnectionLost
		}
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		if msg := strings.TrimSpace(gwErr.Message); msg != "" {
			return msgGatewayErrPrefix + msg
		}
		if code := strings.TrimSpace(gwErr.Code); code != "" {
			return msgGatewayErrPrefix + code
		}
		return MsgGenericGateway
	}
	if errors.Is(err, ErrNotImplemented) {
		return MsgNotImplemented
	}
	if isTLSFailure(err) {
		return MsgTLSFailure
	}
	return err.Error()
}
