package docmap

import "sync"

// memoKey names a scalar or a result a cached query context answers without a round trip
type memoKey string

const (
	memoCount          memoKey = "count"
	memoExists         memoKey = "exists"
	memoEstimatedCount memoKey = "estimated_count"
	memoFirst          memoKey = "first"
	memoLast           memoKey = "last"
)

// memo holds the memoized results of a query context
type memo struct {
	mu     sync.RWMutex
	values map[memoKey]any
}

func newMemo() *memo {
	return &memo{values: map[memoKey]any{}}
}

func (m *memo) load(key memoKey) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

func (m *memo) store(key memoKey, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}
