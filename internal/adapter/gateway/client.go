package gateway

import (
	"context"

	"opsconsole/internal/domain"
)

// Client is the transport-backed domain.GatewayClient.
type Client struct {
	rpc *Transport
}

var _ domain.GatewayClient = (*Client)(nil)

// NewClient builds a client for cfg. Swapping gateways means building a new Client.
func NewClient(cfg domain.GatewayConfiguration, opts ...Option) *Client {
	return &Client{rpc: NewTransport(cfg, opts...)}
}

// Configuration returns the gateway configuration this client talks to.
func (c *Client) Configuration() domain.GatewayConfiguration { return c.rpc.Configuration() }

// FetchStatus calls the "status" method.
func (c *Client) FetchStatus(ctx context.Context) (domain.GatewayStatus, error) {
	var p statusPayload
	if err := c.rpc.Call(ctx, MethodStatus, nil, &p); err != nil {
		return domain.GatewayStatus{}, err
	}
	return p.toDomain(), nil
}

// FetchNodes calls the "node.list" method.
func (c *Client) FetchNodes(ctx context.Context) ([]domain.NodeSummary, error) {
	var p nodeListPayload
	if err := c.rpc.Call(ctx, MethodNodeList, nil, &p); err != nil {
		return nil, err
	}
	return p.toDomain(), nil
}
