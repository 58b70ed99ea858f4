package domain

import (
	"context"
	"time"
)

// GatewayConfiguration identifies one gateway endpoint. A value is never
// mutated once a client has been built from it; switching endpoints means
// building a new client.
type GatewayConfiguration struct {
	BaseURL string
	Token   string
}

// GatewayStatus is the decoded result of the "status" RPC.
type GatewayStatus struct {
	OK      bool          `json:"ok"`
	Version string        `json:"version,omitempty"`
	Build   string        `json:"build,omitempty"`
	Commit  string        `json:"commit,omitempty"`
	Uptime  time.Duration `json:"uptime,omitempty"` // zero when the gateway did not report it
}

// GatewayClient is the capability the connection monitor drives.
// Implementations must be safe for concurrent use.
type GatewayClient interface {
	FetchStatus(ctx context.Context) (GatewayStatus, error)
	FetchNodes(ctx context.Context) ([]NodeSummary, error)
}
