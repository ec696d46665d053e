package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepium/ieltsprep-backend/internal/store"
)

// flakyStore fails every write until the failure budget runs out, recording
// the order successful writes land in.
type flakyStore struct {
	mu       sync.Mutex
	failures int
	applied  []string
	inner    *store.MemoryStore
}

func newFlakyStore(failures int) *flakyStore {
	return &flakyStore{failures: failures, inner: store.NewMemoryStore()}
}

func (f *flakyStore) attempt(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("store unavailable")
	}
	f.applied = append(f.applied, path)
	return nil
}

func (f *flakyStore) appliedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func (f *flakyStore) Read(ctx context.Context, path string) (json.RawMessage, error) {
	return f.inner.Read(ctx, path)
}

func (f *flakyStore) Create(ctx context.Context, path string, data any) (string, error) {
	if err := f.attempt(path); err != nil {
		return "", err
	}
	return f.inner.Create(ctx, path, data)
}

func (f *flakyStore) Update(ctx context.Context, path string, partial map[string]any) error {
	if err := f.attempt(path); err != nil {
		return err
	}
	return f.inner.Update(ctx, path, partial)
}

func (f *flakyStore) Set(ctx context.Context, path string, data any) error {
	if err := f.attempt(path); err != nil {
		return err
	}
	return f.inner.Set(ctx, path, data)
}

func (f *flakyStore) Delete(ctx context.Context, path string) error {
	if err := f.attempt(path); err != nil {
		return err
	}
	return f.inner.Delete(ctx, path)
}

func (f *flakyStore) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (func(), error) {
	return f.inner.Subscribe(ctx, path, fn)
}

func TestOutboxFlushesInOrder(t *testing.T) {
	fs := newFlakyStore(0)
	ob := NewOutbox(fs, zerolog.Nop(), nil)
	ob.Start()
	defer ob.Close()

	ob.Enqueue(Write{Op: OpSet, Path: "a", Data: 1})
	ob.Enqueue(Write{Op: OpSet, Path: "b", Data: 2})
	ob.Enqueue(Write{Op: OpDelete, Path: "a"})

	require.Eventually(t, func() bool { return ob.Pending() == 0 },
		time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "b", "a"}, fs.appliedPaths())
}

func TestOutboxRetriesHeadUntilSuccess(t *testing.T) {
	fs := newFlakyStore(2)
	ob := NewOutbox(fs, zerolog.Nop(), nil)
	ob.Start()
	defer ob.Close()

	ob.Enqueue(Write{Op: OpSet, Path: "attempts/x/answers", Data: "v"})
	ob.Enqueue(Write{Op: OpSet, Path: "attempts/x/flags", Data: "f"})

	// Two failures then success: both writes must land, answers first.
	require.Eventually(t, func() bool { return ob.Pending() == 0 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"attempts/x/answers", "attempts/x/flags"}, fs.appliedPaths())
}

func TestOutboxReportsPendingDepth(t *testing.T) {
	var mu sync.Mutex
	var depths []int

	fs := newFlakyStore(0)
	ob := NewOutbox(fs, zerolog.Nop(), func(pending int) {
		mu.Lock()
		depths = append(depths, pending)
		mu.Unlock()
	})
	ob.Start()
	defer ob.Close()

	ob.Enqueue(Write{Op: OpSet, Path: "p", Data: "x"})
	require.Eventually(t, func() bool { return ob.Pending() == 0 },
		time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, depths)
	assert.Equal(t, 0, depths[len(depths)-1], "the last sync report shows an empty queue")
}

func TestOutboxDrainsOnClose(t *testing.T) {
	fs := newFlakyStore(0)
	ob := NewOutbox(fs, zerolog.Nop(), nil)
	ob.Start()

	for range [5]struct{}{} {
		ob.Enqueue(Write{Op: OpSet, Path: "doc", Data: "v"})
	}
	ob.Close()

	assert.Len(t, fs.appliedPaths(), 5, "close drains everything still queued")
	assert.Equal(t, 0, ob.Pending())
}
