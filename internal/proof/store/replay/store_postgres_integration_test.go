//go:build integration

package replay_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"checkin/internal/proof/store/replay"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	now      time.Time
	store    *replay.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = replay.NewPostgresStore(s.postgres.DB, replay.WithPostgresClock(func() time.Time { return s.now }))
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Millisecond)
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "proof_uses"))
}

func (s *PostgresStoreSuite) TestFirstUseWins() {
	ctx := context.Background()
	s.Require().NoError(s.store.MarkUsed(ctx, "zCommitA", time.Minute))

	err := s.store.MarkUsed(ctx, "zCommitA", time.Minute)
	s.True(errors.Is(err, sentinel.ErrAlreadyUsed))
}

func (s *PostgresStoreSuite) TestExpiredRowIsReused() {
	ctx := context.Background()
	s.Require().NoError(s.store.MarkUsed(ctx, "zCommitA", time.Minute))

	s.now = s.now.Add(time.Minute)
	s.NoError(s.store.MarkUsed(ctx, "zCommitA", time.Minute))
	s.True(errors.Is(s.store.MarkUsed(ctx, "zCommitA", time.Minute), sentinel.ErrAlreadyUsed))
}

func (s *PostgresStoreSuite) TestPurge() {
	ctx := context.Background()
	s.Require().NoError(s.store.MarkUsed(ctx, "short", time.Second))
	s.Require().NoError(s.store.MarkUsed(ctx, "long", time.Hour))

	s.now = s.now.Add(time.Minute)
	n, err := s.store.Purge(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *PostgresStoreSuite) TestMissingTableIsInvalidState() {
	ctx := context.Background()
	_, err := s.postgres.DB.ExecContext(ctx, `DROP TABLE proof_uses`)
	s.Require().NoError(err)
	defer func() { s.Require().NoError(s.store.Migrate(ctx)) }()

	err = s.store.MarkUsed(ctx, "zCommitA", time.Minute)
	s.True(errors.Is(err, sentinel.ErrInvalidState), "got %v", err)
}

func (s *PostgresStoreSuite) TestConcurrentPresentationsConsumeOnce() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var accepted, replayed, other atomic.Int32
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
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), accepted.Load())
	s.Equal(int32(goroutines-1), replayed.Load())
	s.Equal(int32(0), other.Load())
}
