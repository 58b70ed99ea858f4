package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/eventbus"
)

func TestRecordStateTitles(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	tests := []struct {
		state  domain.ConnectionState
		title  string
		detail string
	}{
		{domain.Connected(), "Gateway connected", ""},
		{domain.Disconnected(), "Gateway disconnected", ""},
		{domain.AuthFailed(), "Gateway auth failed", "Update your token in Settings, then reconnect."},
		{domain.Reconnecting(at.Add(8 * time.Second)), "Gateway reconnecting", "Retrying in ~8s"},
		{domain.Reconnecting(at), "Gateway reconnecting", "Retrying now"},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			s := New(0, nil)
			s.RecordState(tt.state, at)

			entries := s.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, KindConnectionState, entries[0].Kind)
			assert.Equal(t, tt.title, entries[0].Title)
			assert.Equal(t, tt.detail, entries[0].Detail)
			assert.Equal(t, at, entries[0].Timestamp)
		})
	}
}

func TestNewestFirstAndCapped(t *testing.T) {
	s := New(3, nil)
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		s.RecordError("err "+string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
	}

	entries := s.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "err e", entries[0].Detail)
	assert.Equal(t, "err c", entries[2].Detail)
	assert.Equal(t, "Connection error", entries[0].Title)
}

func TestIDsAreUniqueULIDs(t *testing.T) {
	s := New(0, nil)
	at := time.Unix(1_700_000_000, 0)
	s.RecordState(domain.Connected(), at)
	s.RecordState(domain.Disconnected(), at)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	for _, e := range entries {
		id, err := ulid.Parse(e.ID)
		require.NoError(t, err)
		assert.Equal(t, ulid.Timestamp(at), id.Time())
	}
}

func TestClear(t *testing.T) {
	s := New(0, nil)
	s.RecordError("boom", time.Now())
	require.Equal(t, 1, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Entries())
}

func TestObserveBus(t *testing.T) {
	bus := eventbus.New(nil)
	s := New(0, nil)
	stop := s.Observe(bus)

	now := time.Unix(1_700_000_000, 0)
	ctx := context.Background()
	bus.Publish(ctx, domain.NewEvent(domain.EventConnectionState, now,
		domain.StatePayload{Previous: domain.Disconnected(), Current: domain.Connected()}))
	bus.Publish(ctx, domain.NewEvent(domain.EventConnectionError, now.Add(time.Second), domain.ErrorPayload{
		ConnectionError: domain.ConnectionError{Message: "Connection to the Gateway was lost.", FirstSeenAt: now, LastEmittedAt: now.Add(2 * time.Second)},
		Class:           "transient",
	}))
	bus.Publish(ctx, domain.NewEvent(domain.EventConnectionCountdown, now, domain.CountdownPayload{Seconds: 3, Active: true}))
	bus.Close()
	stop()

	entries := s.Entries()
	require.Len(t, entries, 2)
	kinds := map[Kind]Entry{}
	for _, e := range entries {
		kinds[e.Kind] = e
	}
	assert.Equal(t, "Gateway connected", kinds[KindConnectionState].Title)
	assert.Equal(t, "Connection to the Gateway was lost.", kinds[KindConnectionError].Detail)
	assert.Equal(t, now.Add(2*time.Second), kinds[KindConnectionError].Timestamp)
}

func TestHandle(t *testing.T) {
	s := New(0, nil)
	now := time.Unix(1_700_000_000, 0)
	ctx := context.Background()

	assert.True(t, s.Handle(ctx, domain.NewEvent(domain.EventConnectionState, now,
		domain.StatePayload{Previous: domain.Connected(), Current: domain.AuthFailed()})))
	assert.False(t, s.Handle(ctx, domain.NewEvent(domain.EventHealthChecked, now, domain.HealthPayload{At: now})))
	assert.False(t, s.Handle(ctx, domain.Event{Type: domain.EventConnectionError, Timestamp: now, Payload: []byte("{")}))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Gateway auth failed", entries[0].Title)
}
