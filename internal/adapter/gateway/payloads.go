package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"opsconsole/internal/domain"
)

// statusPayload tolerates gateways that report uptime in seconds or milliseconds.
type statusPayload struct {
	OK            *bool    `json:"ok"`
	Version       string   `json:"version"`
	Build         string   `json:"build"`
	Commit        string   `json:"commit"`
	UptimeSeconds *float64 `json:"uptimeSeconds"`
	UptimeMs      *float64 `json:"uptimeMs"`
}

func (p statusPayload) toDomain() domain.GatewayStatus {
	st := domain.GatewayStatus{
		OK:      p.OK == nil || *p.OK,
		Version: p.Version,
		Build:   p.Build,
		Commit:  p.Commit,
	}
	switch {
	case p.UptimeSeconds != nil:
		st.Uptime = time.Duration(*p.UptimeSeconds * float64(time.Second))
	case p.UptimeMs != nil:
		st.Uptime = time.Duration(*p.UptimeMs * float64(time.Millisecond))
	}
	return st
}

// nodeEntry is one node as the gateway reports it. Every field is optional.
type nodeEntry struct {
	ID         string `json:"id"`
	NodeID     string `json:"nodeId"`
	DeviceID   string `json:"deviceId"`
	Name       string `json:"name"`
	Host       string `json:"host"`
	Connected  *bool  `json:"connected"`
	LastSeenAt string `json:"lastSeenAt"`
}

// nodeListPayload accepts {"nodes": [...]}, {"items": [...]} or a bare array.
type nodeListPayload struct {
	Entries []nodeEntry
}

func (p *nodeListPayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &p.Entries)
	}

	var wrapped struct {
		Nodes []nodeEntry `json:"nodes"`
		Items []nodeEntry `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	switch {
	case wrapped.Nodes != nil:
		p.Entries = wrapped.Nodes
	case wrapped.Items != nil:
		p.Entries = wrapped.Items
	default:
		return fmt.Errorf("node list: neither nodes nor items present")
	}
	return nil
}

func (p nodeListPayload) toDomain() []domain.NodeSummary {
	out := make([]domain.NodeSummary, 0, len(p.Entries))
	for i, e := range p.Entries {
		out = append(out, e.toDomain(i))
	}
	return out
}

func (e nodeEntry) toDomain(ordinal int) domain.NodeSummary {
	n := domain.NodeSummary{
		ID:    e.stableID(ordinal),
		Name:  firstNonEmpty(e.Name, e.Host, e.ID, e.NodeID, "(unknown)"),
		State: domain.NodeUnknown,
	}
	if e.Connected != nil {
		if *e.Connected {
			n.State = domain.NodeOnline
		} else {
			n.State = domain.NodeOffline
		}
	}
	n.LastSeenAt = parseTimestamp(e.LastSeenAt)
	return n
}

// stableID prefers gateway-issued ids and otherwise derives a deterministic
// one from host, then name, then position in the list.
func (e nodeEntry) stableID(ordinal int) string {
	if id := firstNonEmpty(e.ID, e.NodeID, e.DeviceID); id != "" {
		return id
	}
	if h := strings.TrimSpace(e.Host); h != "" {
		return "host:" + h
	}
	if n := strings.TrimSpace(e.Name); n != "" {
		return "name:" + n
	}
	return fmt.Sprintf("unknown:%d", ordinal)
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
