// Package locking provides an in-process implementation of stock.Locker for
// single-instance deployments and tests.
package locking

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"supplyledger/internal/domain/registers/stock"
)

// maxReaders bounds concurrent shared holders of one key.
const maxReaders = 1 << 20

var _ stock.Locker = (*Memory)(nil)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Memory is a keyed reader/writer lock. A shared hold takes one unit of the
// key's semaphore, an exclusive hold takes all of them.
type Memory struct {
	mu   sync.Mutex
	keys map[string]*entry
}

// NewMemory creates an empty lock table.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]*entry)}
}

// Acquire implements stock.Locker.
func (m *Memory) Acquire(ctx context.Context, key string, mode stock.LockMode) (func(), error) {
	weight := int64(1)
	if mode == stock.LockExclusive {
		weight = maxReaders
	}

	e := m.ref(key)
	if err := e.sem.Acquire(ctx, weight); err != nil {
		m.unref(key)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(weight)
			m.unref(key)
		})
	}, nil
}

func (m *Memory) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(maxReaders)}
		m.keys[key] = e
	}
	e.refs++
	return e
}

func (m *Memory) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.keys[key]
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

// held returns the number of keys currently held or awaited.
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
