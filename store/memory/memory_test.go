package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/smallnest/bedrockgraph/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	t.Parallel()

	ms := New()
	ctx := context.Background()

	cp := &store.Checkpoint{
		ID:        "cp-1",
		SessionID: "session-abc",
		NodeName:  "agent",
		State:     map[string]any{"input": "what is the weather in Seattle?"},
		Timestamp: time.Now(),
		Version:   1,
	}

	require.NoError(t, ms.Save(ctx, cp))

	loaded, err := ms.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp.ID, loaded.ID)
	assert.Equal(t, cp.SessionID, loaded.SessionID)
	assert.Equal(t, cp.NodeName, loaded.NodeName)
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	t.Parallel()

	ms := New()
	err := ms.Save(context.Background(), &store.Checkpoint{SessionID: "s"})
	assert.Error(t, err)
}

func TestMemoryStore_ListOrder(t *testing.T) {
	t.Parallel()

	ms := New()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, ms.Save(ctx, &store.Checkpoint{
			ID:        fmt.Sprintf("cp-%d", i),
			SessionID: "session-abc",
			NodeName:  "agent",
			Version:   i,
		}))
	}

	list, err := ms.List(ctx, "session-abc")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "cp-1", list[0].ID)
	assert.Equal(t, "cp-3", list[2].ID)
}

func TestMemoryStore_DeleteAndClear(t *testing.T) {
	t.Parallel()

	ms := New()
	ctx := context.Background()

	require.NoError(t, ms.Save(ctx, &store.Checkpoint{ID: "cp-1", SessionID: "s1"}))
	require.NoError(t, ms.Save(ctx, &store.Checkpoint{ID: "cp-2", SessionID: "s1"}))

	require.NoError(t, ms.Delete(ctx, "cp-1"))
	_, err := ms.Load(ctx, "cp-1")
	assert.Error(t, err)

	list, err := ms.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, ms.Clear(ctx, "s1"))
	list, err = ms.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
