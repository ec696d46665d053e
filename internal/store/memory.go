package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a map-backed Store used by tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
	subs map[string]map[int]func(json.RawMessage)
	next int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]json.RawMessage),
		subs: make(map[string]map[int]func(json.RawMessage)),
	}
}

func (m *MemoryStore) Read(_ context.Context, path string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *MemoryStore) Create(_ context.Context, path string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	key := uuid.New().String()
	child := path + "/" + key

	m.mu.Lock()
	m.docs[child] = raw
	fns := m.snapshotSubs(child)
	m.mu.Unlock()

	notify(fns, raw)
	return key, nil
}

func (m *MemoryStore) Update(_ context.Context, path string, partial map[string]any) error {
	m.mu.Lock()
	merged, err := merge(m.docs[path], partial)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[path] = merged
	fns := m.snapshotSubs(path)
	m.mu.Unlock()

	notify(fns, merged)
	return nil
}

func (m *MemoryStore) Set(_ context.Context, path string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.docs[path] = raw
	fns := m.snapshotSubs(path)
	m.mu.Unlock()

	notify(fns, raw)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	delete(m.docs, path)
	fns := m.snapshotSubs(path)
	m.mu.Unlock()

	notify(fns, nil)
	return nil
}

func (m *MemoryStore) Subscribe(_ context.Context, path string, fn func(json.RawMessage)) (func(), error) {
	m.mu.Lock()
	if m.subs[path] == nil {
		m.subs[path] = make(map[int]func(json.RawMessage))
	}
	id := m.next
	m.next++
	m.subs[path][id] = fn
	current, ok := m.docs[path]
	m.mu.Unlock()

	if ok {
		fn(current)
	}

	cancel := func() {
		m.mu.Lock()
		delete(m.subs[path], id)
		m.mu.Unlock()
	}
	return cancel, nil
}

// Len reports the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryStore) snapshotSubs(path string) []func(json.RawMessage) {
	fns := make([]func(json.RawMessage), 0, len(m.subs[path]))
	for _, fn := range m.subs[path] {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(json.RawMessage), doc json.RawMessage) {
	for _, fn := range fns {
		fn(doc)
	}
}
