package gateway

import (
	"encoding/json"
	"strings"
)

// FrameType identifies the kind of frame sent over the WebSocket connection.
type FrameType string

const (
	FrameTypeRequest  FrameType = "req"
	FrameTypeResponse FrameType = "res"
	FrameTypeEvent    FrameType = "event"
)

// Protocol constants for the connect handshake.
const (
	ProtocolVersion = 3
	MethodConnect   = "connect"
	MethodStatus    = "status"
	MethodNodeList  = "node.list"

	roleOperator  = "operator"
	scopeReadOnly = "operator.read"
)

// RequestFrame is the only frame this client sends.
type RequestFrame struct {
	Type   FrameType `json:"type"`
	ID     string    `json:"id"`
	Method string    `json:"method"`
	Params any       `json:"params,omitempty"`
}

// Frame is the envelope for every inbound frame. Fields that do not apply to
// the frame's type are left empty.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
	Message string          `json:"message,omitempty"` // some gateways put the failure text here
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"` // event body on older gateways
}

// ResponseError is the structured failure carried by a "res" frame.
type ResponseError struct {
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// DetailsText renders details as plain text whether the gateway sent a JSON
// string or a structured value.
func (e *ResponseError) DetailsText() string {
	if e == nil || len(e.Details) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Details, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(e.Details))
	if text == "null" {
		return ""
	}
	return text
}

// ClientIdentity describes this console to the gateway.
type ClientIdentity struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

// ConnectParams is the body of the connect handshake request.
type ConnectParams struct {
	MinProtocol int            `json:"minProtocol"`
	MaxProtocol int            `json:"maxProtocol"`
	Client      ClientIdentity `json:"client"`
	Role        string         `json:"role"`
	Scopes      []string       `json:"scopes"`
	Auth        *ConnectAuth   `json:"auth,omitempty"`
}

// ConnectAuth carries the bearer token. Omitted when no token is configured.
type ConnectAuth struct {
	Token string `json:"token"`
}

func newConnectParams(client ClientIdentity, token string) ConnectParams {
	p := ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client:      client,
		Role:        roleOperator,
		Scopes:      []string{scopeReadOnly},
	}
	if token = strings.TrimSpace(token); token != "" {
		p.Auth = &ConnectAuth{Token: token}
	}
	return p
}
