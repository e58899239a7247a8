package replay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"checkin/pkg/platform/sentinel"
)

const undefinedTable = "42P01"

// PostgresStore persists used commitments in the proof_uses table.
type PostgresStore struct {
	db    *sql.DB
	clock Clock
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock sets the clock used for expiry decisions.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgresStore constructs a postgres-backed replay store.
func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Migrate creates the proof_uses table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS proof_uses (
			commitment TEXT PRIMARY KEY,
			expires_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create proof_uses: %w", err)
	}
	return nil
}

// MarkUsed records the first use of commitment for ttl. An expired row for
// the same commitment is overwritten in the same statement, so the primary
// key serializes concurrent presentations.
func (s *PostgresStore) MarkUsed(ctx context.Context, commitment string, ttl time.Duration) error {
	if err := validate(commitment, ttl); err != nil {
		return err
	}
	now := s.clock()
	query := `
		INSERT INTO proof_uses (commitment, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (commitment) DO UPDATE SET
			expires_at = EXCLUDED.expires_at
		WHERE proof_uses.expires_at <= $3
	`
	res, err := s.db.ExecContext(ctx, query, commitment, now.Add(ttl), now)
	if err != nil {
		return translate("mark commitment used", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark commitment used: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("commitment %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM proof_uses WHERE expires_at <= $1`, s.clock())
	if err != nil {
		return 0, translate("purge proof_uses", err)
	}
	return res.RowsAffected()
}

func translate(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("proof_uses table missing: %w", sentinel.ErrInvalidState)
	}
	return fmt.Errorf("%s: %v: %w", op, err, sentinel.ErrUnavailable)
}
