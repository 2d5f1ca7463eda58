package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/bedrockgraph/store"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := New(Options{Addr: mr.Addr()})
	defer s.Close()

	ctx := context.Background()
	sessionID := "session-123"

	cp := &store.Checkpoint{
		ID:        "cp-1",
		SessionID: sessionID,
		NodeName:  "agent",
		State:     map[string]any{"input": "what is my mortgage rate for id AVC-1234"},
		Timestamp: time.Now(),
		Version:   1,
	}

	require.NoError(t, s.Save(ctx, cp))

	loaded, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp.ID, loaded.ID)
	assert.Equal(t, cp.SessionID, loaded.SessionID)
	state, ok := loaded.State.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "what is my mortgage rate for id AVC-1234", state["input"])

	list, err := s.List(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cp-1", list[0].ID)
}

func TestRedisStore_ListPreservesOrder(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := New(Options{Addr: mr.Addr()})
	defer s.Close()

	ctx := context.Background()
	for _, id := range []string{"cp-a", "cp-b", "cp-c"} {
		require.NoError(t, s.Save(ctx, &store.Checkpoint{ID: id, SessionID: "sess"}))
	}

	list, err := s.List(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "cp-a", list[0].ID)
	assert.Equal(t, "cp-b", list[1].ID)
	assert.Equal(t, "cp-c", list[2].ID)
}

func TestRedisStore_DeleteAndClear(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := New(Options{Addr: mr.Addr()})
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &store.Checkpoint{ID: "cp-1", SessionID: "sess"}))
	require.NoError(t, s.Save(ctx, &store.Checkpoint{ID: "cp-2", SessionID: "sess"}))

	require.NoError(t, s.Delete(ctx, "cp-1"))
	_, err = s.Load(ctx, "cp-1")
	assert.Error(t, err)

	list, err := s.List(ctx, "sess")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Clear(ctx, "sess"))
	list, err = s.List(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := New(Options{Addr: mr.Addr(), TTL: time.Minute})
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &store.Checkpoint{ID: "cp-1", SessionID: "sess"}))

	mr.FastForward(2 * time.Minute)

	_, err = s.Load(ctx, "cp-1")
	assert.Error(t, err)
}
