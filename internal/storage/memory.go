package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process KV backend. It keeps nothing across restarts.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory constructs an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Load returns a copy of the stored value.
func (m *Memory) Load(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	value, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return cloneBytes(value), nil
}

// Save stores a single value.
func (m *Memory) Save(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[string(key)] = cloneBytes(value)
	return nil
}

// RangeScan lists entries whose key starts with prefix, sorted by key.
func (m *Memory) RangeScan(ctx context.Context, prefix []byte, order Order) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	entries := make([]Entry, 0)
	for k, v := range m.data {
		key := []byte(k)
		if !bytes.HasPrefix(key, prefix) {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: cloneBytes(v)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})
	if order == Descending {
		reverseEntries(entries)
	}
	return entries, nil
}

// Batch validates every op before applying any of them.
func (m *Memory) Batch(ctx context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, op := range ops {
		if op.Type != OpPut && op.Type != OpDelete {
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}
	for _, op := range ops {
		switch op.Type {
		case OpPut:
			m.data[string(op.Key)] = cloneBytes(op.Value)
		case OpDelete:
			delete(m.data, string(op.Key))
		}
	}
	return nil
}

// Close marks the backend closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ KV = (*Memory)(nil)
