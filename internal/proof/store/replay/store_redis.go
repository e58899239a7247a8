package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"checkin/pkg/platform/sentinel"
)

var markUsedDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "checkin_replay_mark_used_duration_ms",
	Help:    "Latency of redis replay-store writes in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const usedCommitmentKeyPrefix = "checkin:used:"

// RedisStore shares replay state across verifier instances. SET NX makes
// the first writer win, so concurrent presentations of one artifact race
// safely.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a redis-backed replay store. The client lifecycle
// is owned by the caller.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// MarkUsed records the first use of commitment for ttl.
func (s *RedisStore) MarkUsed(ctx context.Context, commitment string, ttl time.Duration) error {
	if err := validate(commitment, ttl); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		markUsedDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	ok, err := s.client.SetNX(ctx, usedCommitmentKeyPrefix+commitment, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("mark commitment used: %v: %w", err, sentinel.ErrUnavailable)
	}
	if !ok {
		return fmt.Errorf("commitment %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}
