package domain

import (
	"sort"
	"strings"
	"time"
)

// NodeState is the connectivity of a node as reported by the gateway.
type NodeState string

const (
	NodeOnline  NodeState = "online"
	NodeOffline NodeState = "offline"
	NodeUnknown NodeState = "unknown"
)

// NodeSummary is one entry of the gateway's node list.
type NodeSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	State      NodeState `json:"state"`
	LastSeenAt time.Time `json:"last_seen_at,omitzero"`
}

// SortNodes orders nodes online first, then by name, then by ID.
func SortNodes(nodes []NodeSummary) {
	rank := func(s NodeState) int {
		switch s {
		case NodeOnline:
			return 0
		case NodeOffline:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if ra, rb := rank(a.State), rank(b.State); ra != rb {
			return ra < rb
		}
		if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
			return na < nb
		}
		return a.ID < b.ID
	})
}
