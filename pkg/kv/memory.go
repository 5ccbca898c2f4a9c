package kv

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memEntry struct {
	value []byte
	seq   uint64
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memEntry
	lastSeq  uint64
	pageSize int
}

func NewMemoryStore(pageSize int) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), pageSize: pageSize}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return clone(e.value), ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, had := m.entries[key]
	seq := prev.seq
	if !had {
		if m.lastSeq == maxSeq {
			return nil, false, fmt.Errorf("kv: sequence space exhausted")
		}
		m.lastSeq++
		seq = m.lastSeq
	}
	m.entries[key] = memEntry{value: clone(value), seq: seq}
	return prev.value, had, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, had := m.entries[key]
	delete(m.entries, key)
	return prev.value, had, nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *MemoryStore) ListKeys(_ context.Context, prefix string, cursor uint64) ([]string, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hwm, pos, err := resolveCursor(cursor, m.lastSeq, m.lastSeq)
	if err != nil {
		return nil, 0, err
	}

	type hit struct {
		key string
		seq uint64
	}
	var hits []hit
	for k, e := range m.entries {
		if e.seq > pos && e.seq <= hwm && strings.HasPrefix(k, prefix) {
			hits = append(hits, hit{k, e.seq})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })

	size := pageSize(m.pageSize)
	if len(hits) <= size {
		keys := make([]string, len(hits))
		for i, h := range hits {
			keys[i] = h.key
		}
		return keys, 0, nil
	}
	keys := make([]string, size)
	for i := range keys {
		keys[i] = hits[i].key
	}
	return keys, packCursor(hwm, hits[size-1].seq), nil
}
