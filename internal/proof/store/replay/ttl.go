// Package replay records which proof commitments have already been presented
// so an accepted artifact can be consumed once. Every store keys entries by
// commitment and evicts them after the caller-supplied TTL.
package replay

import (
	"fmt"
	"time"

	"checkin/pkg/platform/sentinel"
)

// Clock returns the current time. Stores default to time.Now.
type Clock func() time.Time

func validate(commitment string, ttl time.Duration) error {
	if commitment == "" {
		return fmt.Errorf("commitment is required: %w", sentinel.ErrInvalidState)
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
