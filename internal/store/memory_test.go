package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetReadDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Read(ctx, "attempts/a1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "attempts/a1", map[string]any{"status": "IN_PROGRESS"}))
	raw, err := m.Read(ctx, "attempts/a1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"IN_PROGRESS"}`, string(raw))

	require.NoError(t, m.Delete(ctx, "attempts/a1"))
	_, err = m.Read(ctx, "attempts/a1")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing path is not an error.
	require.NoError(t, m.Delete(ctx, "attempts/a1"))
}

func TestMemoryStoreUpdateShallowMerge(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.Set(ctx, "doc", map[string]any{"a": 1, "b": "keep"}))
	require.NoError(t, m.Update(ctx, "doc", map[string]any{"a": 2, "c": true}))

	raw, err := m.Read(ctx, "doc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2,"b":"keep","c":true}`, string(raw))

	// Updating a missing document creates it from the partial.
	require.NoError(t, m.Update(ctx, "fresh", map[string]any{"x": 1}))
	raw, err = m.Read(ctx, "fresh")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(raw))
}

func TestMemoryStoreCreateGeneratesChild(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	key1, err := m.Create(ctx, "attempts/a1/play_events", map[string]any{"count": 1})
	require.NoError(t, err)
	key2, err := m.Create(ctx, "attempts/a1/play_events", map[string]any{"count": 2})
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)

	raw, err := m.Read(ctx, "attempts/a1/play_events/"+key1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":1}`, string(raw))
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Set(ctx, "doc", "v1"))

	var got []string
	cancel, err := m.Subscribe(ctx, "doc", func(raw json.RawMessage) {
		var s string
		if raw != nil {
			_ = json.Unmarshal(raw, &s)
		}
		got = append(got, s)
	})
	require.NoError(t, err)

	// Initial snapshot, then every write, then the deletion as nil.
	require.NoError(t, m.Set(ctx, "doc", "v2"))
	require.NoError(t, m.Delete(ctx, "doc"))
	assert.Equal(t, []string{"v1", "v2", ""}, got)

	cancel()
	require.NoError(t, m.Set(ctx, "doc", "v3"))
	assert.Len(t, got, 3, "cancelled subscriptions receive nothing")
}
