package gateway_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsconsole/internal/adapter/gateway"
	"opsconsole/internal/adapter/gateway/gatewaytest"
	"opsconsole/internal/domain"
)

func newClient(srv *gatewaytest.Server, token string, opts ...gateway.Option) *gateway.Client {
	return gateway.NewClient(domain.GatewayConfiguration{BaseURL: srv.URL(), Token: token}, opts...)
}

func waitClosed(t *testing.T, srv *gatewaytest.Server) {
	t.Helper()
	assert.Eventually(t, func() bool { return srv.Open() == 0 }, 2*time.Second, 10*time.Millisecond,
		"socket left open after call")
}

func TestFetchStatus(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(gateway.MethodStatus, gatewaytest.Respond(map[string]any{
		"ok": true, "version": "2026.1", "uptimeSeconds": 42,
	}))

	st, err := newClient(srv, "").FetchStatus(context.Background())

	require.NoError(t, err)
	assert.True(t, st.OK)
	assert.Equal(t, "2026.1", st.Version)
	assert.Equal(t, 42*time.Second, st.Uptime)
	assert.Equal(t, 1, srv.Calls(gateway.MethodConnect))
	assert.Equal(t, 1, srv.Calls(gateway.MethodStatus))
	waitClosed(t, srv)
}

func TestEachCallUsesFreshSocket(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(gateway.MethodStatus, gatewaytest.Respond(map[string]any{"ok": true}))
	c := newClient(srv, "")

	for i := 0; i < 3; i++ {
		_, err := c.FetchStatus(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 3, srv.Accepted())
	assert.Equal(t, 3, srv.Calls(gateway.MethodConnect))
	waitClosed(t, srv)
}

func TestUnrelatedFramesAreIgnored(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.SendOnAccept(gatewaytest.Event("connect.challenge", map[string]any{"nonce": "abc"}))
	srv.SetNoise(true)
	srv.Handle(gateway.MethodNodeList, gatewaytest.Respond(map[string]any{
		"nodes": []map[string]any{{"id": "n1", "name": "alpha", "connected": true}},
	}))

	nodes, err := newClient(srv, "").FetchNodes(context.Background())

	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "n1", nodes[0].ID)
}

func TestConnectCarriesToken(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.RequireToken("secret")
	srv.Handle(gateway.MethodStatus, gatewaytest.Respond(map[string]any{"ok": true}))

	_, err := newClient(srv, "secret").FetchStatus(context.Background())
	require.NoError(t, err)

	var params gateway.ConnectParams
	require.NoError(t, json.Unmarshal(srv.LastConnectParams(), &params))
	assert.Equal(t, gateway.ProtocolVersion, params.MinProtocol)
	assert.Equal(t, gateway.ProtocolVersion, params.MaxProtocol)
	assert.Equal(t, "operator", params.Role)
	assert.Equal(t, []string{"operator.read"}, params.Scopes)
	require.NotNil(t, params.Auth)
	assert.Equal(t, "secret", params.Auth.Token)
}

func TestConnectRejectedIsAuthFailure(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.RequireToken("secret")
	srv.Handle(gateway.MethodStatus, gatewaytest.Respond(map[string]any{"ok": true}))

	_, err := newClient(srv, "wrong").FetchStatus(context.Background())

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "auth.invalid", gwErr.Code)
	assert.Equal(t, "Invalid token", gwErr.Message)
	assert.True(t, domain.IsAuthFailure(err))
	assert.Equal(t, 0, srv.Calls(gateway.MethodStatus), "request must not be sent after a failed handshake")
	waitClosed(t, srv)
}

func TestRequestErrorSurfacesGatewayError(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(gateway.MethodStatus, gatewaytest.Reject("E_BUSY", "try later"))

	_, err := newClient(srv, "").FetchStatus(context.Background())

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "E_BUSY", gwErr.Code)
	assert.Equal(t, domain.ClassUnknown, domain.Classify(err))
}

func TestMissingPayloadIsGatewayError(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(gateway.MethodStatus, gatewaytest.Respond(nil))

	_, err := newClient(srv, "").FetchStatus(context.Background())

	assert.ErrorIs(t, err, domain.ErrGateway)
}

func TestMalformedFrameIsUnexpected(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(gateway.MethodStatus, func(context.Context, json.RawMessage) (any, *gatewaytest.Error) {
		return gatewaytest.RawFrame(`{"type":"res","id":"` + gatewaytest.RequestIDPlaceholder + `","ok":"yes"}`), nil
	})

	_, err := newClient(srv, "").FetchStatus(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnexpectedFrame)
	waitClosed(t, srv)
}

func TestUndecodableUnrelatedFramesAreIgnored(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.SendOnAccept(
		gatewaytest.RawFrame("{not json"),
		gatewaytest.RawFrame(`{"type":"res","id":"someone-else","ok":"yes"}`),
	)
	srv.Handle(gateway.MethodStatus, gatewaytest.Respond(map[string]any{"ok": true, "version": "2026.1"}))

	st, err := newClient(srv, "").FetchStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "2026.1", st.Version)
}

func TestUndecodablePayloadIsUnexpected(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(gateway.MethodNodeList, gatewaytest.Respond("not a list"))

	_, err := newClient(srv, "").FetchNodes(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnexpectedFrame)
}

func TestPhaseTimeouts(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(srv *gatewaytest.Server)
		opts      gateway.Option
		wantPhase string
	}{
		{
			name:      "silent handshake",
			setup:     func(srv *gatewaytest.Server) { srv.HandleConnect(gatewaytest.Hang()) },
			opts:      gateway.WithTimeouts(150*time.Millisecond, 5*time.Second, 5*time.Second),
			wantPhase: "connecting to Gateway",
		},
		{
			name:      "silent request",
			setup:     func(srv *gatewaytest.Server) { srv.Handle(gateway.MethodStatus, gatewaytest.Hang()) },
			opts:      gateway.WithTimeouts(5*time.Second, 150*time.Millisecond, 5*time.Second),
			wantPhase: "waiting for status response",
		},
		{
			name:      "stuck read",
			setup:     func(srv *gatewaytest.Server) { srv.Handle(gateway.MethodStatus, gatewaytest.Hang()) },
			opts:      gateway.WithTimeouts(5*time.Second, 5*time.Second, 150*time.Millisecond),
			wantPhase: "waiting for Gateway frame",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := gatewaytest.NewServer(t)
			tt.setup(srv)

			start := time.Now()
			_, err := newClient(srv, "", tt.opts).FetchStatus(context.Background())

			var te *domain.TimeoutError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.wantPhase, te.Operation)
			assert.Equal(t, domain.ClassTimeout, domain.Classify(err))
			assert.Less(t, time.Since(start), 3*time.Second)
			waitClosed(t, srv)
		})
	}
}

func TestCallerCancellation(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(gateway.MethodStatus, gatewaytest.Hang())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := newClient(srv, "").FetchStatus(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	waitClosed(t, srv)
}

func TestUnreachableGatewayIsTransient(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	base := srv.URL()
	srv.Close()

	c := gateway.NewClient(domain.GatewayConfiguration{BaseURL: base})
	_, err := c.FetchStatus(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.ClassTransient, domain.Classify(err))
	assert.Equal(t, domain.MsgCannotConnect, domain.PresentError(err))
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.Handle(gateway.MethodStatus, gatewaytest.Respond(map[string]any{"ok": true}))
	c := newClient(srv, "")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchStatus(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 8, srv.Calls(gateway.MethodStatus))
	waitClosed(t, srv)
}
