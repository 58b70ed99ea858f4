package gateway

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

// Default timeouts for each wait phase of a call.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultReceiveTimeout = 10 * time.Second

	defaultReadLimit = 4 << 20
)

// DefaultClientIdentity identifies the console in the connect handshake.
func DefaultClientIdentity() ClientIdentity {
	return ClientIdentity{
		ID:       "opsconsole",
		Version:  "0.1",
		Platform: runtime.GOOS,
		Mode:     roleOperator,
	}
}

type settings struct {
	connectTimeout time.Duration
	requestTimeout time.Duration
	receiveTimeout time.Duration
	identity       ClientIdentity
	httpClient     *http.Client
	logger         *slog.Logger
}

func defaultSettings() settings {
	return settings{
		connectTimeout: DefaultConnectTimeout,
		requestTimeout: DefaultRequestTimeout,
		receiveTimeout: DefaultReceiveTimeout,
		identity:       DefaultClientIdentity(),
		logger:         slog.Default(),
	}
}

// Option configures a Transport or Client.
type Option func(*settings)

// WithTimeouts overrides the per-phase timeouts. Zero values keep the default.
func WithTimeouts(connect, request, receive time.Duration) Option {
	return func(s *settings) {
		if connect > 0 {
			s.connectTimeout = connect
		}
		if request > 0 {
			s.requestTimeout = request
		}
		if receive > 0 {
			s.receiveTimeout = receive
		}
	}
}

// WithClientIdentity sets the identity sent in the connect handshake.
func WithClientIdentity(id ClientIdentity) Option {
	return func(s *settings) {
		if id.ID != "" {
			s.identity = id
		}
	}
}

// WithHTTPClient sets the HTTP client used for the WebSocket upgrade.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}
