package gateway

import (
	"net/url"
	"strings"

	"opsconsole/internal/domain"
)

// WebSocketURL maps a configured base URL onto the socket transport:
// http becomes ws, https becomes wss and ws/wss pass through. Any other
// scheme, including none at all, is rejected before a dial is attempted.
func WebSocketURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return "", domain.InvalidBaseURLError(raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "http":
		u.Scheme = "ws"
	case "wss", "https":
		u.Scheme = "wss"
	default:
		return "", domain.InvalidBaseURLError(raw)
	}
	return u.String(), nil
}
