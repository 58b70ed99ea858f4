package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortNodes(t *testing.T) {
	nodes := []NodeSummary{
		{ID: "c", Name: "zeta", State: NodeOffline},
		{ID: "b", Name: "Beta", State: NodeOnline},
		{ID: "d", Name: "", State: NodeUnknown},
		{ID: "a", Name: "alpha", State: NodeOnline},
	}
	SortNodes(nodes)

	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestConnectionStateEqual(t *testing.T) {
	at := time.Unix(100, 0)
	assert.True(t, Connected().Equal(Connected()))
	assert.False(t, Connected().Equal(Disconnected()))
	assert.True(t, Reconnecting(at).Equal(Reconnecting(at)))
	assert.False(t, Reconnecting(at).Equal(Reconnecting(at.Add(time.Second))))
	assert.Equal(t, "Auth failed", AuthFailed().DisplayName())
	assert.Equal(t, "connected", Connected().String())
}
