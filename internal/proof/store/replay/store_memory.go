package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkin/pkg/platform/sentinel"
)

// sweepEvery bounds how many inserts may happen between eviction passes.
const sweepEvery = 256

// InMemoryStore is a single-process replay store.
type InMemoryStore struct {
	mu      sync.Mutex
	used    map[string]time.Time
	clock   Clock
	inserts int
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock sets the clock used for expiry decisions.
func WithClock(clock Clock) InMemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		used:  make(map[string]time.Time),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkUsed records the first use of commitment. A repeat within ttl returns
// sentinel.ErrAlreadyUsed.
func (s *InMemoryStore) MarkUsed(_ context.Context, commitment string, ttl time.Duration) error {
	if err := validate(commitment, ttl); err != nil {
		return err
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiresAt, ok := s.used[commitment]; ok && now.Before(expiresAt) {
		return fmt.Errorf("commitment %w", sentinel.ErrAlreadyUsed)
	}
	s.used[commitment] = now.Add(ttl)

	s.inserts++
	if s.inserts >= sweepEvery {
		s.sweepLocked(now)
		s.inserts = 0
	}
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *InMemoryStore) Sweep() int {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

// Len returns the number of tracked commitments, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.used)
}

func (s *InMemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for c, expiresAt := range s.used {
		if !now.Before(expiresAt) {
			delete(s.used, c)
			removed++
		}
	}
	return removed
}
