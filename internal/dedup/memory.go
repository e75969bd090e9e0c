package dedup

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryWarmTier is an in-process warm tier with a TTL. It only helps when
// invocations reuse the same process.
type MemoryWarmTier struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	keys map[string]map[string]time.Time // chain -> key -> marked at
}

// NewMemoryWarmTier creates an in-memory warm tier.
func NewMemoryWarmTier(ttl time.Duration) *MemoryWarmTier {
	return &MemoryWarmTier{ttl: ttl, now: time.Now, keys: make(map[string]map[string]time.Time)}
}

var _ WarmTier = (*MemoryWarmTier)(nil)

// Read returns the live keys for a chain, oldest first. Expired keys are dropped.
func (m *MemoryWarmTier) Read(_ context.Context, chainID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	chain := m.keys[chainID]
	out := make([]string, 0, len(chain))
	for k, at := range chain {
		if !at.After(cutoff) {
			delete(chain, k)
			continue
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if !chain[out[i]].Equal(chain[out[j]]) {
			return chain[out[i]].Before(chain[out[j]])
		}
		return out[i] < out[j]
	})
	return out, nil
}

// Mark records a key unless it is already live.
func (m *MemoryWarmTier) Mark(_ context.Context, chainID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chain, ok := m.keys[chainID]
	if !ok {
		chain = make(map[string]time.Time)
		m.keys[chainID] = chain
	}
	now := m.now()
	if at, ok := chain[key]; ok && at.After(now.Add(-m.ttl)) {
		return true, nil
	}
	chain[key] = now
	return false, nil
}

// Unmark forgets a key.
func (m *MemoryWarmTier) Unmark(_ context.Context, chainID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys[chainID], key)
	return nil
}
