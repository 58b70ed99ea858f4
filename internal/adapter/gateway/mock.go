package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opsconsole/internal/domain"
)

// Scenario selects the canned data a MockClient serves.
type Scenario string

const (
	ScenarioDemo        Scenario = "demo"
	ScenarioGatewayDown Scenario = "gateway-down"
)

// ParseScenario accepts the scenario names used on the command line.
func ParseScenario(s string) (Scenario, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "demo":
		return ScenarioDemo, nil
	case "gateway-down", "gatewaydown", "down":
		return ScenarioGatewayDown, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownScenario, s)
	}
}

// MockClient is a fixed domain.GatewayClient for demos and offline UI work.
type MockClient struct {
	scenario Scenario
	now      func() time.Time
}

var _ domain.GatewayClient = (*MockClient)(nil)

// NewMockClient creates a mock serving scenario.
func NewMockClient(scenario Scenario) *MockClient {
	return &MockClient{scenario: scenario, now: time.Now}
}

// FetchStatus returns a healthy status for the demo and ok=false when the gateway is down.
func (m *MockClient) FetchStatus(ctx context.Context) (domain.GatewayStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.GatewayStatus{}, err
	}
	if m.scenario == ScenarioGatewayDown {
		return domain.GatewayStatus{OK: false}, nil
	}
	return domain.GatewayStatus{
		OK:      true,
		Version: "OpenClaw 2026.x",
		Build:   "dev",
		Commit:  "(mock)",
		Uptime:  12345 * time.Second,
	}, nil
}

// FetchNodes returns one online and one offline node.
func (m *MockClient) FetchNodes(ctx context.Context) ([]domain.NodeSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := m.now()
	return []domain.NodeSummary{
		{ID: "node-1", Name: "hackstudio", State: domain.NodeOnline, LastSeenAt: now},
		{ID: "node-2", Name: "pi-gateway", State: domain.NodeOffline, LastSeenAt: now.Add(-time.Hour)},
	}, nil
}
