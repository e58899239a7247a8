package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"checkin/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	now   time.Time
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.now = time.Unix(1_700_000_000, 0)
	s.store = NewInMemoryStore(WithClock(func() time.Time { return s.now }))
}

func (s *InMemoryStoreSuite) TestFirstUseWins() {
	ctx := context.Background()

	s.Require().NoError(s.store.MarkUsed(ctx, "zCommitA", time.Minute))

	err := s.store.MarkUsed(ctx, "zCommitA", time.Minute)
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrAlreadyUsed))

	s.NoError(s.store.MarkUsed(ctx, "zCommitB", time.Minute), "other commitments are independent")
}

func (s *InMemoryStoreSuite) TestEntryExpiresAfterTTL() {
	ctx := context.Background()
	s.Require().NoError(s.store.MarkUsed(ctx, "zCommitA", time.Minute))

	s.now = s.now.Add(59 * time.Second)
	s.True(errors.Is(s.store.MarkUsed(ctx, "zCommitA", time.Minute), sentinel.ErrAlreadyUsed))

	s.now = s.now.Add(time.Second)
	s.NoError(s.store.MarkUsed(ctx, "zCommitA", time.Minute))
}

func (s *InMemoryStoreSuite) TestSweepEvictsExpired() {
	ctx := context.Background()
	s.Require().NoError(s.store.MarkUsed(ctx, "short", time.Second))
	s.Require().NoError(s.store.MarkUsed(ctx, "long", time.Hour))

	s.now = s.now.Add(2 * time.Second)

	s.Equal(1, s.store.Sweep())
	s.Equal(1, s.store.Len())
}

func (s *InMemoryStoreSuite) TestPeriodicSweepBoundsGrowth() {
	ctx := context.Background()
	for i := 0; i < sweepEvery-1; i++ {
		s.Require().NoError(s.store.MarkUsed(ctx, fmt.Sprintf("c-%d", i), time.Second))
	}
	s.now = s.now.Add(time.Minute)

	s.Require().NoError(s.store.MarkUsed(ctx, "trigger", time.Hour))
	s.Equal(1, s.store.Len())
}

func (s *InMemoryStoreSuite) TestRejectsInvalidArguments() {
	ctx := context.Background()
	s.True(errors.Is(s.store.MarkUsed(ctx, "", time.Minute), sentinel.ErrInvalidState))
	s.True(errors.Is(s.store.MarkUsed(ctx, "zCommitA", 0), sentinel.ErrInvalidState))
}

func (s *InMemoryStoreSuite) TestConcurrentPresentationsConsumeOnce() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var accepted, replayed atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.MarkUsed(ctx, "zShared", time.Minute)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				replayed.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), accepted.Load())
	s.Equal(int32(goroutines-1), replayed.Load())
}
