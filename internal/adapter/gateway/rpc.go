package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"opsconsole/internal/domain"
	"opsconsole/internal/infra/tracer"
)

// Phase names used in timeout errors.
const (
	opConnecting      = "connecting to Gateway"
	opWaitingForFrame = "waiting for Gateway frame"
)

type dialFunc func(ctx context.Context, u string, opts *websocket.DialOptions) (*websocket.Conn, *http.Response, error)

// Transport performs RPC calls against one gateway configuration. Each call
// dials its own socket, handshakes, sends one request, waits for the matching
// response and closes the socket before returning.
type Transport struct {
	cfg      domain.GatewayConfiguration
	settings settings
	dial     dialFunc
}

// NewTransport creates a transport bound to cfg.
func NewTransport(cfg domain.GatewayConfiguration, opts ...Option) *Transport {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &Transport{cfg: cfg, settings: s, dial: websocket.Dial}
}

// Configuration returns the configuration the transport was built with.
func (t *Transport) Configuration() domain.GatewayConfiguration { return t.cfg }

// Call invokes method with params and decodes the response payload into out.
// out may be nil when the caller only cares about success.
func (t *Transport) Call(ctx context.Context, method string, params, out any) (err error) {
	ctx, span := tracer.StartSpan(ctx, "gateway.rpc", trace.WithAttributes(tracer.StringAttr("rpc.method", method)))
	start := time.Now()
	defer func() {
		if err != nil {
			tracer.RecordError(span, err)
			t.settings.logger.Debug("gateway call failed", "method", method, "duration", time.Since(start), "error", err)
		} else {
			tracer.SetOK(span)
			t.settings.logger.Debug("gateway call ok", "method", method, "duration", time.Since(start))
		}
		span.End()
	}()

	wsURL, err := WebSocketURL(t.cfg.BaseURL)
	if err != nil {
		return err
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, t.settings.connectTimeout)
	defer cancelConnect()

	conn, err := t.open(connectCtx, wsURL)
	if err != nil {
		return phaseError(ctx, connectCtx, opConnecting, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(defaultReadLimit)

	// Send connect right away; a gateway that stays silent until spoken to
	// must not stall the handshake.
	hello := newConnectParams(t.settings.identity, t.cfg.Token)
	if _, err := t.roundTrip(ctx, connectCtx, conn, MethodConnect, hello, opConnecting); err != nil {
		return err
	}
	cancelConnect()

	reqCtx, cancelReq := context.WithTimeout(ctx, t.settings.requestTimeout)
	defer cancelReq()

	res, err := t.roundTrip(ctx, reqCtx, conn, method, params, "waiting for "+method+" response")
	if err != nil {
		return err
	}
	if len(res.Payload) == 0 || string(res.Payload) == "null" {
		return responseError(res)
	}
	span.SetAttributes(tracer.IntAttr("rpc.payload_bytes", len(res.Payload)))
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Payload, out); err != nil {
		return fmt.Errorf("%w: decode %s payload: %w", domain.ErrUnexpectedFrame, method, err)
	}
	return nil
}

func (t *Transport) open(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	conn, resp, err := t.dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: t.settings.httpClient})
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, &domain.GatewayError{Code: "unauthorized", Message: http.StatusText(resp.StatusCode)}
			case http.StatusForbidden:
				return nil, &domain.GatewayError{Code: "forbidden", Message: http.StatusText(resp.StatusCode)}
			}
		}
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	return conn, nil
}

// roundTrip sends one request and waits, within phase, for the response
// carrying the same id. A response with ok=false becomes a *domain.GatewayError.
func (t *Transport) roundTrip(parent, phase context.Context, conn *websocket.Conn, method string, params any, op string) (*Frame, error) {
	if params == nil {
		params = struct{}{}
	}
	id := uuid.NewString()
	req := RequestFrame{Type: FrameTypeRequest, ID: id, Method: method, Params: params}
	if err := wsjson.Write(phase, conn, req); err != nil {
		return nil, phaseError(parent, phase, op, connectionLost(fmt.Errorf("send %s: %w", method, err)))
	}

	for {
		data, err := t.readFrame(parent, phase, conn, op)
		if err != nil {
			return nil, err
		}
		frame, err := decodeFrame(data, id)
		if err != nil {
			return nil, err
		}
		if frame == nil {
			t.settings.logger.Debug("gateway: ignoring undecodable frame", "awaiting", method, "size", len(data))
			continue
		}
		if frame.Type != FrameTypeResponse || frame.ID != id {
			t.settings.logger.Debug("gateway: ignoring frame",
				"type", string(frame.Type), "id", frame.ID, "event", frame.Event, "awaiting", method)
			continue
		}
		if !frame.OK {
			return nil, responseError(frame)
		}
		return frame, nil
	}
}

// readFrame receives one message, bounded by the receive timeout so a socket
// stuck mid-read cannot outlive the call.
func (t *Transport) readFrame(parent, phase context.Context, conn *websocket.Conn, op string) ([]byte, error) {
	readCtx, cancel := context.WithTimeout(phase, t.settings.receiveTimeout)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	if err != nil {
		if perr := phaseError(parent, phase, op, nil); perr != nil {
			return nil, perr
		}
		if readCtx.Err() != nil {
			return nil, &domain.TimeoutError{Operation: opWaitingForFrame}
		}
		return nil, connectionLost(err)
	}
	return data, nil
}

// decodeFrame parses data. A message that does not decode is the caller's
// problem only when it is a response carrying awaited; otherwise decodeFrame
// returns nil, nil and the message is skipped.
func decodeFrame(data []byte, awaited string) (*Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	if err == nil {
		return &f, nil
	}
	var head struct {
		Type FrameType `json:"type"`
		ID   string    `json:"id"`
	}
	if json.Unmarshal(data, &head) == nil && head.Type == FrameTypeResponse && head.ID == awaited {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnexpectedFrame, err)
	}
	return nil, nil
}

// phaseError attributes a failure to the caller's cancellation, the phase
// deadline, or err itself, in that order.
func phaseError(parent, phase context.Context, op string, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	if phase.Err() != nil {
		return &domain.TimeoutError{Operation: op}
	}
	return err
}

func connectionLost(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrConnectionLost, err)
}

func responseError(f *Frame) error {
	if f.Error != nil {
		return &domain.GatewayError{
			Code:    f.Error.Code,
			Message: f.Error.Message,
			Details: f.Error.DetailsText(),
		}
	}
	return &domain.GatewayError{Message: f.Message}
}
