// Package gatewaytest runs an in-process gateway that speaks the req/res/event
// frame protocol, for exercising clients without a real deployment.
package gatewaytest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Error is a structured failure sent back with ok=false.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// RawFrame makes the server write the string verbatim instead of a response frame.
// In a handler result, RequestIDPlaceholder is replaced with the request id.
// SendOnAccept writes it as-is.
type RawFrame string

// RequestIDPlaceholder marks where a RawFrame response takes the request id.
const RequestIDPlaceholder = "{{id}}"

// Handler answers one RPC call. Returning a non-nil *Error sends ok=false;
// returning a RawFrame sends that text as-is.
type Handler func(ctx context.Context, params json.RawMessage) (any, *Error)

type inFrame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type outFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	OK      *bool  `json:"ok,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   *Error `json:"error,omitempty"`
	Event   string `json:"event,omitempty"`
}

// Server is a fake gateway bound to a loopback port.
type Server struct {
	http *httptest.Server

	mu          sync.RWMutex
	handlers    map[string]Handler
	connect     Handler
	onAccept    []any
	noise       bool
	token       string
	calls       map[string]int
	lastConnect json.RawMessage
	conns       map[*websocket.Conn]struct{}

	accepted atomic.Int64
	open     atomic.Int64
}

// NewServer starts a fake gateway and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
		conns:    make(map[*websocket.Conn]struct{}),
	}
	s.connect = s.defaultConnect
	s.http = httptest.NewServer(http.HandlerFunc(s.handleUpgrade))
	t.Cleanup(s.Close)
	return s
}

// URL returns the http:// base URL a client would be configured with.
func (s *Server) URL() string { return s.http.URL }

// Close drops every open socket and stops the listener.
func (s *Server) Close() {
	s.mu.Lock()
	for c := range s.conns {
		c.CloseNow()
	}
	s.mu.Unlock()
	s.http.Close()
}

// RequireToken makes the default connect handler reject any other token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Handle registers h for method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// HandleConnect replaces the connect handshake handler.
func (s *Server) HandleConnect(h Handler) {
	s.mu.Lock()
	s.connect = h
	s.mu.Unlock()
}

// SendOnAccept queues frames written as soon as a socket is accepted,
// before the client has said anything.
func (s *Server) SendOnAccept(frames ...any) {
	s.mu.Lock()
	s.onAccept = append(s.onAccept, frames...)
	s.mu.Unlock()
}

// SetNoise makes the server write an event and an unrelated response ahead
// of every real response.
func (s *Server) SetNoise(on bool) {
	s.mu.Lock()
	s.noise = on
	s.mu.Unlock()
}

// Accepted is the number of sockets accepted so far.
func (s *Server) Accepted() int { return int(s.accepted.Load()) }

// Open is the number of sockets currently open.
func (s *Server) Open() int { return int(s.open.Load()) }

// Calls returns how many requests for method were received.
func (s *Server) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

// LastConnectParams returns the params of the most recent connect request.
func (s *Server) LastConnectParams() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastConnect
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	s.accepted.Add(1)
	s.open.Add(1)
	s.mu.Lock()
	s.conns[ws] = struct{}{}
	preamble := append([]any(nil), s.onAccept...)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.conns, ws)
		s.mu.Unlock()
		ws.CloseNow()
		s.open.Add(-1)
	}()

	for _, f := range preamble {
		var err error
		if raw, ok := f.(RawFrame); ok {
			err = ws.Write(ctx, websocket.MessageText, []byte(raw))
		} else {
			err = write(ctx, ws, f)
		}
		if err != nil {
			return
		}
	}

	s.readLoop(ctx, ws)
}

func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	for {
		var frame inFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			return
		}
		if frame.Type != "req" {
			continue
		}

		s.mu.Lock()
		s.calls[frame.Method]++
		var h Handler
		if frame.Method == "connect" {
			s.lastConnect = frame.Params
			h = s.connect
		} else {
			h = s.handlers[frame.Method]
		}
		s.mu.Unlock()

		if h == nil {
			h = func(context.Context, json.RawMessage) (any, *Error) {
				return nil, &Error{Code: "method_not_found", Message: "unknown method " + frame.Method}
			}
		}

		wg.Add(1)
		go func(req inFrame) {
			defer wg.Done()
			s.dispatch(ctx, ws, req, h)
		}(frame)
	}
}

func (s *Server) dispatch(ctx context.Context, ws *websocket.Conn, req inFrame, h Handler) {
	result, rpcErr := h(ctx, req.Params)
	if ctx.Err() != nil {
		return
	}

	s.mu.RLock()
	noise := s.noise
	s.mu.RUnlock()
	if noise {
		_ = write(ctx, ws, Event("tick", map[string]any{"ts": time.Now().UnixMilli()}))
		_ = write(ctx, ws, outFrame{Type: "res", ID: "unrelated-" + req.ID, OK: ptr(true), Payload: map[string]any{}})
	}

	if raw, ok := result.(RawFrame); ok {
		_ = ws.Write(ctx, websocket.MessageText, []byte(strings.ReplaceAll(string(raw), RequestIDPlaceholder, req.ID)))
		return
	}

	resp := outFrame{Type: "res", ID: req.ID}
	if rpcErr != nil {
		resp.OK = ptr(false)
		resp.Error = rpcErr
	} else {
		resp.OK = ptr(true)
		resp.Payload = result
	}
	_ = write(ctx, ws, resp)
}

func (s *Server) defaultConnect(_ context.Context, params json.RawMessage) (any, *Error) {
	var p struct {
		Auth *struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &Error{Code: "bad_request", Message: err.Error()}
	}

	s.mu.RLock()
	want := s.token
	s.mu.RUnlock()
	if want != "" && (p.Auth == nil || p.Auth.Token != want) {
		return nil, &Error{Code: "auth.invalid", Message: "Invalid token"}
	}
	return map[string]any{"type": "hello-ok", "protocol": 3}, nil
}

func write(ctx context.Context, ws *websocket.Conn, v any) error {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(wctx, ws, v)
}

func ptr[T any](v T) *T { return &v }

// Event builds an event frame for SendOnAccept.
func Event(name string, payload any) any {
	return outFrame{Type: "event", Event: name, Payload: payload}
}

// Respond returns a handler that always answers with payload.
func Respond(payload any) Handler {
	return func(context.Context, json.RawMessage) (any, *Error) { return payload, nil }
}

// Reject returns a handler that always fails with code and message.
func Reject(code, message string) Handler {
	return func(context.Context, json.RawMessage) (any, *Error) {
		return nil, &Error{Code: code, Message: message}
	}
}

// Hang returns a handler that never answers until the socket goes away.
func Hang() Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, *Error) {
		<-ctx.Done()
		return nil, nil
	}
}

// Counting wraps h and reports each invocation on the returned channel.
func Counting(h Handler) (Handler, <-chan struct{}) {
	ch := make(chan struct{}, 64)
	return func(ctx context.Context, params json.RawMessage) (any, *Error) {
		select {
		case ch <- struct{}{}:
		default:
		}
		return h(ctx, params)
	}, ch
}
