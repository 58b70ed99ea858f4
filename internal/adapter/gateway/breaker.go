package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"opsconsole/internal/domain"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
}

// BreakerClient wraps a GatewayClient with circuit breaker protection. Only
// failures that mean the gateway is unreachable count toward tripping; auth
// and gateway-reported errors prove the gateway answered.
type BreakerClient struct {
	inner   domain.GatewayClient
	breaker *gobreaker.CircuitBreaker[any]
}

var _ domain.GatewayClient = (*BreakerClient)(nil)

// NewBreakerClient wraps inner. Zero config fields fall back to defaults.
func NewBreakerClient(inner domain.GatewayClient, name string, cfg BreakerConfig, logger *slog.Logger) *BreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "gateway:" + name,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsRetryableError(err)
		},
	})

	return &BreakerClient{inner: inner, breaker: cb}
}

// State reports the breaker state for display.
func (b *BreakerClient) State() string { return b.breaker.State().String() }

func (b *BreakerClient) FetchStatus(ctx context.Context) (domain.GatewayStatus, error) {
	v, err := b.breaker.Execute(func() (any, error) {
		return b.inner.FetchStatus(ctx)
	})
	if err != nil {
		return domain.GatewayStatus{}, wrapBreakerErr(err)
	}
	return v.(domain.GatewayStatus), nil
}

func (b *BreakerClient) FetchNodes(ctx context.Context) ([]domain.NodeSummary, error) {
	v, err := b.breaker.Execute(func() (any, error) {
		return b.inner.FetchNodes(ctx)
	})
	if err != nil {
		return nil, wrapBreakerErr(err)
	}
	return v.([]domain.NodeSummary), nil
}

func wrapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrCircuitOpen, err)
	}
	return err
}
