package cache

import (
	"sync"
	"time"
)

// Entry is a memoized completion result. Entries are immutable after
// creation; expiry removes them rather than mutating them.
type Entry struct {
	Fingerprint string
	Result      string
	Model       string
	Temperature float64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Store is an in-memory TTL memo keyed by request fingerprint. Expiry is
// lazy: an entry at or past its deadline is evicted by the Get that finds
// it. Sweep covers entries that are never requested again.
type Store struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]*Entry

	now func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:   ttl,
		items: make(map[string]*Entry),
		now:   time.Now,
	}
}

// Get returns the live entry for the fingerprint, or (nil, false) on a miss.
// An entry whose deadline has arrived counts as a miss and is removed.
func (s *Store) Get(fingerprint string) (*Entry, bool) {
	s.mu.RLock()
	entry, ok := s.items[fingerprint]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !s.now().Before(entry.ExpiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have
		// replaced the expired entry with a fresh one.
		if cur, ok := s.items[fingerprint]; ok && cur == entry {
			delete(s.items, fingerprint)
		}
		s.mu.Unlock()
		return nil, false
	}

	return entry, true
}

// Put stores a successful completion, overwriting any prior entry for the
// same fingerprint.
func (s *Store) Put(fingerprint, result, model string, temperature float64) {
	now := s.now()
	entry := &Entry{
		Fingerprint: fingerprint,
		Result:      result,
		Model:       model,
		Temperature: temperature,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	s.mu.Lock()
	s.items[fingerprint] = entry
	s.mu.Unlock()
}

// Sweep removes every expired entry and reports how many were evicted.
// Called periodically so entries for prompts nobody asks about twice do
// not accumulate in a long-running process.
func (s *Store) Sweep() int {
	now := s.now()
	evicted := 0

	s.mu.Lock()
	for key, entry := range s.items {
		if !now.Before(entry.ExpiresAt) {
			delete(s.items, key)
			evicted++
		}
	}
	s.mu.Unlock()

	return evicted
}

// Len reports the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
