package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamLogger(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	sink := NewStreamLogger(client, "hub:audit", 0)
	multi := NewMultiLogger(&failingLogger{}, sink)

	events := []*Event{
		{ID: "e-1", Action: ActionUserInvite, TargetType: TargetUser, TargetID: "u-1"},
		{ID: "e-2", Action: ActionCompanyDelete, TargetType: TargetCompany, TargetID: "c-1"},
	}
	for _, e := range events {
		// the failing sink does not keep the event from the stream
		assert.EqualError(t, multi.Log(ctx, e), "disk full")
	}
	require.NoError(t, multi.Close())

	entries, err := client.XRange(ctx, "hub:audit", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, len(events))
	for i, entry := range entries {
		assert.Equal(t, events[i].ID, entry.Values["id"])
		assert.Equal(t, string(events[i].Action), entry.Values["action"])

		var got Event
		require.NoError(t, json.Unmarshal([]byte(entry.Values["event"].(string)), &got))
		assert.Equal(t, events[i].TargetID, got.TargetID)
	}

	// the client stays usable after Close
	require.NoError(t, client.Ping(ctx).Err())
}

func TestStreamLogger_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	err := NewStreamLogger(client, "hub:audit", 10).Log(context.Background(), &Event{ID: "e-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish audit event")
}
